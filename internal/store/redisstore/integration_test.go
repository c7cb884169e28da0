//go:build integration

package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
	"interninsight/match-service/internal/store/redisstore"
)

func openStore(t *testing.T) *redisstore.Store {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	return redisstore.New(rdb, "test:"+uuid.NewString())
}

func TestIntegration_SaveGetTop(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.SaveMatchScore(ctx, model.MatchScoreEntry{CandidateID: "u1", CompanyID: "c1", MatchScore: 55, LastUpdated: now}))
	require.NoError(t, s.SaveMatchScore(ctx, model.MatchScoreEntry{CandidateID: "u1", CompanyID: "c2", MatchScore: 80, LastUpdated: now}))

	e, err := s.MatchScore(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 55.0, e.MatchScore)

	_, err = s.MatchScore(ctx, "u9", "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	top, err := s.TopMatchScores(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "c2", top[0].CompanyID)

	ids, err := s.CompaniesWithMatchScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestIntegration_IncrementClampsAndExcludes(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.SaveMatchScore(ctx, model.MatchScoreEntry{CandidateID: "u1", CompanyID: "c1", MatchScore: 98.5, LastUpdated: now}))
	require.NoError(t, s.SaveMatchScore(ctx, model.MatchScoreEntry{CandidateID: "u2", CompanyID: "c1", MatchScore: 50, LastUpdated: now}))

	n, err := s.IncrementMatchScores(ctx, "c1", 3, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := s.MatchScore(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, e.MatchScore)

	e, err = s.MatchScore(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, e.MatchScore)

	top, err := s.TopMatchScores(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 100.0, top[0].MatchScore)
}
