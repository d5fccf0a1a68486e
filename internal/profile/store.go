// Package profile provides read access to user profile data owned by the
// main application backend: display summaries for message enrichment and
// registered device tokens for push delivery. The chat service never writes
// profiles.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoDeviceToken is returned when a user has no registered device, meaning
// push delivery cannot be attempted.
var ErrNoDeviceToken = errors.New("profile: no device token registered")

// Summary is the display form of a profile used in chat events.
type Summary struct {
	UserID string
	Name   string
	Avatar string
}

// Device is a user's registered push target.
type Device struct {
	Token    string
	Platform string // "android" or "ios"
}

// Store reads profile data from PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a profile store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Summary returns the display summary for a user. Unknown users yield an
// empty summary rather than an error, since a profile may not exist yet when
// the first message is relayed.
func (s *Store) Summary(ctx context.Context, userID string) (Summary, error) {
	const query = `
		SELECT user_id, COALESCE(name, ''), COALESCE(avatar, '')
		FROM profiles WHERE user_id = $1`

	var sum Summary
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&sum.UserID, &sum.Name, &sum.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{UserID: userID}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("profile: summary: %w", err)
	}
	return sum, nil
}

// DeviceFor returns the registered push device for a user, or
// ErrNoDeviceToken when none is registered.
func (s *Store) DeviceFor(ctx context.Context, userID string) (Device, error) {
	const query = `
		SELECT COALESCE(device_token, ''), COALESCE(device_platform, '')
		FROM profiles WHERE user_id = $1`

	var d Device
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&d.Token, &d.Platform)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, ErrNoDeviceToken
	}
	if err != nil {
		return Device{}, fmt.Errorf("profile: device: %w", err)
	}
	if d.Token == "" {
		return Device{}, ErrNoDeviceToken
	}
	return d, nil
}
