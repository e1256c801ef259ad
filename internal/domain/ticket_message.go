package domain

import "time"

// TicketMessage is one chat entry in a ticket thread.
type TicketMessage struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorRole Role
	Body       string
	CreatedAt  time.Time
}
