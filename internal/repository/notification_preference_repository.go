package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/analyticket/helpdesk/internal/domain"
)

// NotificationPreferenceRepository persists per-user notification settings.
type NotificationPreferenceRepository interface {
	Get(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
	Upsert(ctx context.Context, prefs *domain.NotificationPreferences) error
}

type notificationPreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationPreferenceRepository builds repository.
func NewNotificationPreferenceRepository(pool *pgxpool.Pool) NotificationPreferenceRepository {
	return &notificationPreferenceRepository{pool: pool}
}

// Get returns stored preferences, or the defaults when none were saved.
func (r *notificationPreferenceRepository) Get(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	const query = `
        SELECT user_id, email_on_status_change, email_on_new_message, email_on_assignment, updated_at
        FROM notification_preferences WHERE user_id=$1`
	var prefs domain.NotificationPreferences
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.EmailOnStatusChange,
		&prefs.EmailOnNewMessage,
		&prefs.EmailOnAssignment,
		&prefs.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		defaults := domain.DefaultNotificationPreferences(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *notificationPreferenceRepository) Upsert(ctx context.Context, prefs *domain.NotificationPreferences) error {
	const query = `
        INSERT INTO notification_preferences (user_id, email_on_status_change, email_on_new_message, email_on_assignment)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id) DO UPDATE SET
            email_on_status_change=EXCLUDED.email_on_status_change,
            email_on_new_message=EXCLUDED.email_on_new_message,
            email_on_assignment=EXCLUDED.email_on_assignment,
            updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		prefs.UserID,
		prefs.EmailOnStatusChange,
		prefs.EmailOnNewMessage,
		prefs.EmailOnAssignment,
	).Scan(&prefs.UpdatedAt)
}
