// Package events publishes match-service notifications on Redis pub/sub.
//
// Every event is a JSON object on the channel "<prefix>:<type>", for example
// "interninsight:EVENT_MATCH_SCORES_UPDATED". Subscribers (the gateway's SSE
// fan-out) key on the type; eventId lets them drop duplicates.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	TypeMatchScoresUpdated = "EVENT_MATCH_SCORES_UPDATED"
	TypeReputationUpdated  = "EVENT_REPUTATION_UPDATED"
)

// Event is the payload of a notification.
type Event struct {
	ID          string    `json:"eventId"`
	Type        string    `json:"type"`
	CandidateID string    `json:"candidateId,omitempty"`
	CompanyID   string    `json:"companyId,omitempty"`
	MatchScore  *float64  `json:"matchScore,omitempty"`
	Reputation  *float64  `json:"reputation,omitempty"`
	Impact      float64   `json:"impact"`
	Affected    int       `json:"affected"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// publisher is the slice of *redis.Client the Publisher needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher sends events to Redis.
type Publisher struct {
	rdb    publisher
	prefix string
	now    func() time.Time
}

// NewPublisher returns a Publisher writing to channels under prefix.
func NewPublisher(rdb publisher, prefix string) *Publisher {
	return &Publisher{rdb: rdb, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

// Channel returns the channel an event type is published on.
func (p *Publisher) Channel(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + ":" + eventType
}

// Publish stamps ev with an id and time when missing and sends it.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.Type == "" {
		return fmt.Errorf("publish: event type is required")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.Channel(ev.Type), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
