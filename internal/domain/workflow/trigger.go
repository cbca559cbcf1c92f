package workflow

import "strings"

// Trigger is a decision that moves a request between states
type Trigger string

const (
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerReturn   Trigger = "RETURN"
	TriggerResubmit Trigger = "RESUBMIT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsDecision reports whether a reviewer may submit the trigger.
// Resubmit is reserved for the request's officer.
func (t Trigger) IsDecision() bool {
	return t == TriggerApprove || t == TriggerReject || t == TriggerReturn
}

// ParseDecision maps review statuses ("Approved", "Rejected", "Returned") and trigger names to a trigger
func ParseDecision(s string) (Trigger, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVE", "APPROVED":
		return TriggerApprove, true
	case "REJECT", "REJECTED":
		return TriggerReject, true
	case "RETURN", "RETURNED", "RETURNED TO OFFICER":
		return TriggerReturn, true
	default:
		return "", false
	}
}
