package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channel string
	body    []byte
}

type fakeRedis struct {
	sent []sent
	err  error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.sent = append(f.sent, sent{channel: channel, body: message.([]byte)})
	return redis.NewIntResult(1, f.err)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "interninsight:EVENT_MATCH_SCORES_UPDATED", NewPublisher(nil, "interninsight").Channel(TypeMatchScoresUpdated))
	assert.Equal(t, TypeMatchScoresUpdated, NewPublisher(nil, "").Channel(TypeMatchScoresUpdated))
}

func TestPublish_StampsIDAndTime(t *testing.T) {
	rdb := &fakeRedis{}
	p := NewPublisher(rdb, "ii")
	p.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	score := 72.5
	require.NoError(t, p.Publish(context.Background(), Event{
		Type: TypeMatchScoresUpdated, CandidateID: "u1", CompanyID: "c1", MatchScore: &score, Impact: 2, Affected: 3,
	}))
	require.Len(t, rdb.sent, 1)
	assert.Equal(t, "ii:EVENT_MATCH_SCORES_UPDATED", rdb.sent[0].channel)

	var got Event
	require.NoError(t, json.Unmarshal(rdb.sent[0].body, &got))
	_, err := uuid.Parse(got.ID)
	assert.NoError(t, err)
	assert.Equal(t, "u1", got.CandidateID)
	assert.Equal(t, 72.5, *got.MatchScore)
	assert.Equal(t, 3, got.Affected)
	assert.True(t, got.OccurredAt.Equal(p.now()))
}

func TestPublish_KeepsGivenID(t *testing.T) {
	rdb := &fakeRedis{}
	require.NoError(t, NewPublisher(rdb, "ii").Publish(context.Background(), Event{ID: "fixed", Type: TypeReputationUpdated}))

	var got Event
	require.NoError(t, json.Unmarshal(rdb.sent[0].body, &got))
	assert.Equal(t, "fixed", got.ID)
}

func TestPublish_Errors(t *testing.T) {
	rdb := &fakeRedis{err: errors.New("connection reset")}
	p := NewPublisher(rdb, "ii")

	assert.Error(t, p.Publish(context.Background(), Event{}))
	assert.Empty(t, rdb.sent)

	err := p.Publish(context.Background(), Event{Type: TypeMatchScoresUpdated})
	assert.ErrorContains(t, err, "connection reset")
}
