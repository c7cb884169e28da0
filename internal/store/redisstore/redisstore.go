// Package redisstore keeps cached match-score entries in Redis.
//
// Layout:
//
//	<prefix>:company:<companyId>    hash   candidateId → entry JSON
//	<prefix>:candidate:<candidateId> zset  companyId scored by match score
//	<prefix>:companies              set    company ids with at least one entry
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"interninsight/match-service/internal/model"
	"interninsight/match-service/internal/store"
)

var _ store.MatchScoreStore = (*Store)(nil)

// incrementScript adds a delta to every entry of one company except the
// excluded candidate, re-clamps to [0,100], rounds to 2 decimals and keeps
// each candidate's sorted set in step. Returns the number of entries touched.
var incrementScript = redis.NewScript(`
local company_key = KEYS[1]
local delta = tonumber(ARGV[1])
local exclude = ARGV[2]
local candidate_prefix = ARGV[3]
local company_id = ARGV[4]
local entries = redis.call('HGETALL', company_key)
local n = 0
for i = 1, #entries, 2 do
  local cand = entries[i]
  if cand ~= exclude then
    local e = cjson.decode(entries[i + 1])
    local s = tonumber(e.matchScore) + delta
    if s > 100 then s = 100 end
    if s < 0 then s = 0 end
    s = math.floor(s * 100 + 0.5) / 100
    e.matchScore = s
    redis.call('HSET', company_key, cand, cjson.encode(e))
    redis.call('ZADD', candidate_prefix .. cand, s, company_id)
    n = n + 1
  end
end
return n
`)

// Store implements store.MatchScoreStore on a Redis client.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New returns a Store that namespaces its keys under prefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "matchscore"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) companyKey(companyID string) string {
	return fmt.Sprintf("%s:company:%s", s.prefix, companyID)
}

func (s *Store) candidatePrefix() string { return s.prefix + ":candidate:" }

func (s *Store) candidateKey(candidateID string) string { return s.candidatePrefix() + candidateID }

func (s *Store) companiesKey() string { return s.prefix + ":companies" }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, store.ErrUnavailable, err)
}

func (s *Store) SaveMatchScore(ctx context.Context, e model.MatchScoreEntry) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("saveMatchScore marshal: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.companyKey(e.CompanyID), e.CandidateID, doc)
		p.ZAdd(ctx, s.candidateKey(e.CandidateID), redis.Z{Score: e.MatchScore, Member: e.CompanyID})
		p.SAdd(ctx, s.companiesKey(), e.CompanyID)
		return nil
	})
	return wrap("saveMatchScore", err)
}

func (s *Store) MatchScore(ctx context.Context, candidateID, companyID string) (*model.MatchScoreEntry, error) {
	doc, err := s.rdb.HGet(ctx, s.companyKey(companyID), candidateID).Bytes()
	if err != nil {
		return nil, wrap("matchScore", err)
	}
	var e model.MatchScoreEntry
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("matchScore unmarshal: %w", err)
	}
	return &e, nil
}

func (s *Store) MatchScoresForCompany(ctx context.Context, companyID string) ([]model.MatchScoreEntry, error) {
	all, err := s.rdb.HGetAll(ctx, s.companyKey(companyID)).Result()
	if err != nil {
		return nil, wrap("matchScoresForCompany", err)
	}
	out := make([]model.MatchScoreEntry, 0, len(all))
	for _, doc := range all {
		var e model.MatchScoreEntry
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			return nil, fmt.Errorf("matchScoresForCompany unmarshal: %w", err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateID < out[j].CandidateID })
	return out, nil
}

func (s *Store) IncrementMatchScores(ctx context.Context, companyID string, delta float64, excludeCandidateID string) (int, error) {
	n, err := incrementScript.Run(ctx, s.rdb,
		[]string{s.companyKey(companyID)},
		delta, excludeCandidateID, s.candidatePrefix(), companyID,
	).Int()
	if err != nil {
		return 0, wrap("incrementMatchScores", err)
	}
	return n, nil
}

// TopMatchScores orders by score descending, then company id ascending. The
// whole sorted set is read because Redis breaks score ties by member in
// reverse order.
func (s *Store) TopMatchScores(ctx context.Context, candidateID string, limit int) ([]model.MatchScoreEntry, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, s.candidateKey(candidateID), 0, -1).Result()
	if err != nil {
		return nil, wrap("topMatchScores", err)
	}
	sort.SliceStable(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score > zs[j].Score
		}
		a, _ := zs[i].Member.(string)
		b, _ := zs[j].Member.(string)
		return a < b
	})

	out := make([]model.MatchScoreEntry, 0, len(zs))
	for _, z := range zs {
		if limit > 0 && len(out) == limit {
			break
		}
		companyID, _ := z.Member.(string)
		e, err := s.MatchScore(ctx, candidateID, companyID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *Store) CompaniesWithMatchScores(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.companiesKey()).Result()
	if err != nil {
		return nil, wrap("companiesWithMatchScores", err)
	}
	sort.Strings(ids)
	return ids, nil
}
