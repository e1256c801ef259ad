package domain

// Principal is the authenticated identity making a request.
type Principal struct {
	ID   string
	Role Role
}
