// Package push delivers best-effort notifications to users who are not
// reachable over a live connection. Senders never propagate errors into
// caller logic: a failed delivery is logged and reported as false.
package push

import (
	"context"
	"encoding/json"
	"log"
)

// Notification is the payload handed to a Sender: a visible title and body
// plus a data map carrying the identifiers a client needs to deep-link into
// the right conversation.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Job is the serialized form of a queued push delivery.
type Job struct {
	UserID       string       `json:"user_id"`
	Notification Notification `json:"notification"`
}

// Sender attempts delivery of a notification to a user's registered device.
// It returns true on success and false on any failure; it never panics or
// returns an error into the caller.
type Sender interface {
	Send(ctx context.Context, userID string, note Notification) bool
}

// publisher is the slice of the NATS client the queue needs.
type publisher interface {
	PublishPushJob(data []byte) error
}

// Queue is a Sender that hands the notification to the push worker over
// NATS. From the chat server's perspective, a successful publish is a
// successful fallback attempt; actual device delivery happens asynchronously
// in the worker.
type Queue struct {
	pub publisher
}

// NewQueue creates a queue-backed sender publishing to the given NATS client.
func NewQueue(pub publisher) *Queue {
	return &Queue{pub: pub}
}

// Send enqueues the notification for asynchronous delivery.
func (q *Queue) Send(ctx context.Context, userID string, note Notification) bool {
	data, err := json.Marshal(Job{UserID: userID, Notification: note})
	if err != nil {
		log.Printf("[push] marshal job for user=%s: %v", userID, err)
		return false
	}
	if err := q.pub.PublishPushJob(data); err != nil {
		log.Printf("[push] enqueue for user=%s: %v", userID, err)
		return false
	}
	return true
}
