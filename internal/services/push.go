package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// ErrPushDisabled is returned when no APNs key is configured
var ErrPushDisabled = errors.New("push notifications disabled")

// Pusher sends an alert to a guide's device
type Pusher interface {
	Push(ctx context.Context, deviceToken, title, body string) error
}

// PushService sends APNs alerts with token based authentication
type PushService struct {
	client  *apns2.Client
	topic   string
	enabled bool
}

// NewPushService creates an APNs push service. An empty key path yields a
// disabled service.
func NewPushService(keyPath, keyID, teamID, topic string, production bool) (*PushService, error) {
	if keyPath == "" {
		log.Info().Msg("Push service disabled: apns.key_path not configured")
		return &PushService{}, nil
	}

	authKey, err := token.AuthKeyFromFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	log.Info().Str("topic", topic).Bool("production", production).Msg("Push service enabled")

	return &PushService{
		client:  client,
		topic:   topic,
		enabled: true,
	}, nil
}

// Push sends an alert to one device
func (s *PushService) Push(ctx context.Context, deviceToken, title, body string) error {
	if !s.enabled {
		return ErrPushDisabled
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		Payload:     payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default"),
	}

	res, err := s.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().Str("apns_id", res.ApnsID).Msg("Push notification sent")
	return nil
}
