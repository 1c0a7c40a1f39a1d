package enums

import "fmt"

// StagedItemStatus tracks a staged item through the pre-event lifecycle.
type StagedItemStatus string

const (
	StagedItemStatusStaged    StagedItemStatus = "staged"
	StagedItemStatusReleased  StagedItemStatus = "released"
	StagedItemStatusConverted StagedItemStatus = "converted"
)

var validStagedItemStatuses = []StagedItemStatus{
	StagedItemStatusStaged,
	StagedItemStatusReleased,
	StagedItemStatusConverted,
}

// String implements fmt.Stringer.
func (s StagedItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StagedItemStatus.
func (s StagedItemStatus) IsValid() bool {
	for _, candidate := range validStagedItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStagedItemStatus converts raw input into a StagedItemStatus.
func ParseStagedItemStatus(value string) (StagedItemStatus, error) {
	for _, candidate := range validStagedItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staged item status %q", value)
}
