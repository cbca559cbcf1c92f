package workflow

// State is a stage in the expense approval pipeline
type State string

const (
	StatePending                State = "PENDING"
	StateReturnedToOfficer      State = "RETURNED_TO_OFFICER"
	StateAuthorizedBySupervisor State = "AUTHORIZED_BY_SUPERVISOR"
	StateReviewedByReviewer     State = "REVIEWED_BY_REVIEWER"
	StateApprovedByApprover     State = "APPROVED_BY_APPROVER"
	StatePaymentRequested       State = "PAYMENT_REQUESTED"
	StateRejected               State = "REJECTED"
)

// InitialState is the status of every freshly created request
const InitialState = StatePending

var stateLabels = map[State]string{
	StatePending:                "Pending",
	StateReturnedToOfficer:      "Returned to Officer",
	StateAuthorizedBySupervisor: "Authorized by Supervisor",
	StateReviewedByReviewer:     "Reviewed by Reviewer",
	StateApprovedByApprover:     "Approved by Approver",
	StatePaymentRequested:       "Payment Requested",
	StateRejected:               "Rejected",
}

var terminalStates = map[State]bool{
	StatePaymentRequested: true,
	StateRejected:         true,
}

// AllStates lists every state in pipeline order
func AllStates() []State {
	return []State{
		StatePending,
		StateReturnedToOfficer,
		StateAuthorizedBySupervisor,
		StateReviewedByReviewer,
		StateApprovedByApprover,
		StatePaymentRequested,
		StateRejected,
	}
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Label returns the human readable status used in notifications
func (s State) Label() string {
	if label, ok := stateLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	_, ok := stateLabels[s]
	return ok
}
