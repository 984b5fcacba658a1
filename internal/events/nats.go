// Package events implements ports.EventPublisher over NATS JetStream.
// Publication is best-effort: AuthCore logs and continues on failure
// rather than failing the calling operation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/pnwatin/auth-server/internal/ports"
)

const (
	// StreamName is the single JetStream stream this service owns.
	StreamName = "AUTH"
	// SubjectPattern covers every subject this package publishes to.
	SubjectPattern = "auth.>"

	subjectUserRegistered = "auth.user.registered"
	subjectFamilyReused   = "auth.family.reused"
)

// Broker implements ports.EventPublisher.
type Broker struct {
	js jetstream.JetStream
}

var _ ports.EventPublisher = (*Broker)(nil)

// NewBroker connects to url and ensures the stream exists (idempotent —
// safe to call on every process start).
func NewBroker(url string) (*Broker, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("events: jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("events: create stream: %w", err)
	}

	return &Broker{js: js}, nil
}

type userRegisteredEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type familyReusedEvent struct {
	Family string `json:"family"`
	UserID string `json:"user_id"`
}

// PublishUserRegistered emits auth.user.registered after sign_up
// commits.
func (b *Broker) PublishUserRegistered(ctx context.Context, userID uuid.UUID, email string) error {
	data, err := json.Marshal(userRegisteredEvent{UserID: userID.String(), Email: email})
	if err != nil {
		return fmt.Errorf("events: marshal user registered: %w", err)
	}
	if _, err := b.js.Publish(ctx, subjectUserRegistered, data); err != nil {
		return fmt.Errorf("events: publish user registered: %w", err)
	}
	return nil
}

// PublishFamilyReused emits auth.family.reused when refresh_tokens
// detects a replayed, already-rotated-away jit — the signal an
// operator would alert on.
func (b *Broker) PublishFamilyReused(ctx context.Context, family, userID uuid.UUID) error {
	data, err := json.Marshal(familyReusedEvent{Family: family.String(), UserID: userID.String()})
	if err != nil {
		return fmt.Errorf("events: marshal family reused: %w", err)
	}
	if _, err := b.js.Publish(ctx, subjectFamilyReused, data); err != nil {
		return fmt.Errorf("events: publish family reused: %w", err)
	}
	return nil
}
