package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/amora/chat-backend/internal/profile"
)

// DefaultFCMEndpoint is the Firebase Cloud Messaging legacy send endpoint.
const DefaultFCMEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMConfig holds Firebase Cloud Messaging settings.
type FCMConfig struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration // per-send deadline; timeouts are logged failures
}

// DefaultFCMConfig returns defaults for the FCM sender. The server key must
// be supplied from the environment.
func DefaultFCMConfig() FCMConfig {
	return FCMConfig{
		Endpoint: DefaultFCMEndpoint,
		Timeout:  5 * time.Second,
	}
}

// deviceResolver is the slice of the profile store the sender needs.
type deviceResolver interface {
	DeviceFor(ctx context.Context, userID string) (profile.Device, error)
}

// FCMSender delivers notifications to registered devices through Firebase
// Cloud Messaging. Used by the push worker, not by the chat server directly.
type FCMSender struct {
	config  FCMConfig
	client  *http.Client
	devices deviceResolver
}

// NewFCMSender creates an FCM sender resolving device tokens through the
// given profile store.
func NewFCMSender(config FCMConfig, devices deviceResolver) *FCMSender {
	return &FCMSender{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		devices: devices,
	}
}

// fcmMessage is the legacy FCM request body. Android and iOS devices both
// receive the notification block; the data block carries deep-link IDs.
type fcmMessage struct {
	To           string            `json:"to"`
	Priority     string            `json:"priority"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

// Send looks up the user's device token and posts the notification to FCM.
// Users without a registered device are a silent miss, not an error.
func (s *FCMSender) Send(ctx context.Context, userID string, note Notification) bool {
	device, err := s.devices.DeviceFor(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNoDeviceToken) {
			log.Printf("[push] user=%s has no registered device", userID)
		} else {
			log.Printf("[push] device lookup for user=%s: %v", userID, err)
		}
		return false
	}

	body, err := json.Marshal(fcmMessage{
		To:       device.Token,
		Priority: "high",
		Notification: fcmNotification{
			Title: note.Title,
			Body:  note.Body,
			Sound: "default",
		},
		Data: note.Data,
	})
	if err != nil {
		log.Printf("[push] marshal fcm message for user=%s: %v", userID, err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("[push] build fcm request for user=%s: %v", userID, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.config.ServerKey)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[push] fcm send for user=%s platform=%s: %v", userID, device.Platform, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[push] fcm send for user=%s: status %s", userID, resp.Status)
		return false
	}

	log.Printf("[push] delivered to user=%s platform=%s", userID, device.Platform)
	return true
}

// String implements fmt.Stringer for config logging without the server key.
func (c FCMConfig) String() string {
	return fmt.Sprintf("endpoint=%s timeout=%s", c.Endpoint, c.Timeout)
}
