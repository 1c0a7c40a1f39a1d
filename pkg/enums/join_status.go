package enums

import "fmt"

// JoinStatus tracks a participant through the approval gate.
type JoinStatus string

const (
	JoinStatusPending  JoinStatus = "pending"
	JoinStatusApproved JoinStatus = "approved"
	JoinStatusRejected JoinStatus = "rejected"
	JoinStatusLeft     JoinStatus = "left"
)

var validJoinStatuses = []JoinStatus{
	JoinStatusPending,
	JoinStatusApproved,
	JoinStatusRejected,
	JoinStatusLeft,
}

// String implements fmt.Stringer.
func (j JoinStatus) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JoinStatus.
func (j JoinStatus) IsValid() bool {
	for _, candidate := range validJoinStatuses {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJoinStatus converts raw input into a JoinStatus.
func ParseJoinStatus(value string) (JoinStatus, error) {
	for _, candidate := range validJoinStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid join status %q", value)
}
