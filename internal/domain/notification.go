package domain

import "time"

// NotificationPreferences controls which ticket events are mailed to a user.
type NotificationPreferences struct {
	UserID              string
	EmailOnStatusChange bool
	EmailOnNewMessage   bool
	EmailOnAssignment   bool
	UpdatedAt           time.Time
}

// DefaultNotificationPreferences is used until a user saves their own.
func DefaultNotificationPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:              userID,
		EmailOnStatusChange: true,
		EmailOnNewMessage:   true,
		EmailOnAssignment:   false,
	}
}
