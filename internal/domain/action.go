package domain

// Action is an operation a principal attempts on a single ticket.
type Action string

const (
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionClose   Action = "close"
	ActionComment Action = "comment"
	ActionClaim   Action = "claim"
	ActionAssign  Action = "assign"
)

// IsMutation reports whether the action changes the ticket or its thread.
func (a Action) IsMutation() bool {
	return a != ActionRead
}
