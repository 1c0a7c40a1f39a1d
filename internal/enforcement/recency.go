package enforcement

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type rankedRow struct {
	id      uuid.UUID
	created string
	score   int64
}

// recencyScore is the millisecond timestamp of the most recent touch. Rows
// with neither timestamp set score zero and sort last.
func recencyScore(createdAt, updatedAt time.Time) int64 {
	var score int64
	if !updatedAt.IsZero() && updatedAt.UnixMilli() > score {
		score = updatedAt.UnixMilli()
	}
	if !createdAt.IsZero() && createdAt.UnixMilli() > score {
		score = createdAt.UnixMilli()
	}
	return score
}

func createdKey(createdAt time.Time) string {
	if createdAt.IsZero() {
		return ""
	}
	return createdAt.UTC().Format(time.RFC3339Nano)
}

// sortByRecency orders rows newest first. Ties fall back to the creation-time
// string and then the id so repeated runs always trim the same rows.
func sortByRecency(rows []rankedRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		if rows[i].created != rows[j].created {
			return rows[i].created < rows[j].created
		}
		return rows[i].id.String() < rows[j].id.String()
	})
}

// splitAtLimit partitions ranked rows into the kept head and the removed tail.
func splitAtLimit(rows []rankedRow, limit int) (kept, removed []uuid.UUID) {
	if limit < 0 {
		limit = 0
	}
	if limit > len(rows) {
		limit = len(rows)
	}
	kept = make([]uuid.UUID, 0, limit)
	removed = make([]uuid.UUID, 0, len(rows)-limit)
	for i, row := range rows {
		if i < limit {
			kept = append(kept, row.id)
		} else {
			removed = append(removed, row.id)
		}
	}
	return kept, removed
}
