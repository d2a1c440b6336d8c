// Package redis implements the delivery ledger on Redis.
//
// Each dispatch key is a hash at reminder:{ledger}:<session>:<type>. Two sorted sets
// index the hashes: open claims by claimed_at (stale sweep) and terminal entries by
// committed_at (retention purge). Claim and commit transitions run as Lua scripts so
// they are atomic on the server.
//
// Every script touches an entry and an index, so all keys carry the {ledger} hash
// tag and live in one slot. That keeps the scripts and the purge transaction legal
// on Redis Cluster, at the cost of the ledger not spreading across shards.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"class-reminder/internal/domain/entity"
	"class-reminder/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "reminder:{ledger}:"
	claimedIndex  = keyPrefix + "idx:claimed"
	terminalIndex = keyPrefix + "idx:terminal"
)

// KEYS: entry, claimed index. ARGV: token, now, cutoff, max attempts, member.
// Returns the attempt number when claimed, 0 otherwise.
var claimScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
  redis.call('HSET', KEYS[1], 'state', 'claimed', 'token', ARGV[1], 'claimed_at', ARGV[2], 'attempts', 1)
  redis.call('ZADD', KEYS[2], ARGV[2], ARGV[5])
  return 1
end
if state == 'claimed' then
  local claimedAt = tonumber(redis.call('HGET', KEYS[1], 'claimed_at'))
  local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts'))
  if claimedAt < tonumber(ARGV[3]) and attempts < tonumber(ARGV[4]) then
    attempts = attempts + 1
    redis.call('HSET', KEYS[1], 'token', ARGV[1], 'claimed_at', ARGV[2], 'attempts', attempts)
    redis.call('ZADD', KEYS[2], ARGV[2], ARGV[5])
    return attempts
  end
end
return 0
`)

// KEYS: entry, claimed index, terminal index. ARGV: token, state, now, detail, member.
var commitScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'claimed' or redis.call('HGET', KEYS[1], 'token') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[2], 'committed_at', ARGV[3], 'last_error', ARGV[4])
redis.call('ZREM', KEYS[2], ARGV[5])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[5])
return 1
`)

// Sweep results.
const (
	sweepNotStale    = -1
	sweepReclaimable = 0
	sweepExhausted   = 1
	sweepExpired     = 2
)

// KEYS: entry, claimed index, terminal index.
// ARGV: cutoff, max attempts, now, exhausted message, member, expiry cutoff, expired message.
// Returns {code, claimed_at, attempts}, code being one of the sweep results.
var sweepScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'state', 'claimed_at', 'attempts')
if v[1] ~= 'claimed' then
  redis.call('ZREM', KEYS[2], ARGV[5])
  return {-1, 0, 0}
end
local claimedAt = tonumber(v[2])
local attempts = tonumber(v[3])
if claimedAt >= tonumber(ARGV[1]) then
  return {-1, claimedAt, attempts}
end
local code = 0
local reason = ''
if attempts >= tonumber(ARGV[2]) then
  code = 1
  reason = ARGV[4]
elseif claimedAt < tonumber(ARGV[6]) then
  code = 2
  reason = ARGV[7]
end
if code > 0 then
  redis.call('HSET', KEYS[1], 'state', 'failed', 'committed_at', ARGV[3], 'last_error', reason)
  redis.call('ZREM', KEYS[2], ARGV[5])
  redis.call('ZADD', KEYS[3], ARGV[3], ARGV[5])
end
return {code, claimedAt, attempts}
`)

// NewClient parses a redis:// or rediss:// URL, hardens timeouts and pings the server.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second

	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// LedgerRepo is a repository.DeliveryLedger on Redis.
type LedgerRepo struct {
	rdb    redis.UniversalClient
	policy entity.ClaimPolicy
}

func NewLedgerRepo(rdb redis.UniversalClient, policy entity.ClaimPolicy) repository.DeliveryLedger {
	return &LedgerRepo{rdb: rdb, policy: policy}
}

func (repo *LedgerRepo) Policy() entity.ClaimPolicy {
	return repo.policy
}

func (repo *LedgerRepo) TryClaim(ctx context.Context, key entity.DispatchKey, now time.Time) (entity.Claim, error) {
	token := uuid.New().String()
	attempts, err := claimScript.Run(ctx, repo.rdb,
		[]string{entryKey(key), claimedIndex},
		token, now.UnixMilli(), repo.policy.StaleCutoff(now).UnixMilli(), repo.policy.MaxAttempts, key.String(),
	).Int64()
	if err != nil {
		return entity.Claim{}, fmt.Errorf("TryClaim: %w", err)
	}
	if attempts == 0 {
		return entity.Claim{Key: key, Status: entity.ClaimAlreadyHandled}, nil
	}
	return entity.Claim{
		Key:       key,
		Status:    entity.ClaimClaimed,
		Token:     token,
		Attempt:   int(attempts),
		Reclaimed: attempts > 1,
	}, nil
}

func (repo *LedgerRepo) Commit(ctx context.Context, claim entity.Claim, state entity.LedgerState, detail string, now time.Time) error {
	if !state.Terminal() {
		return fmt.Errorf("Commit: state %q: %w", state, entity.ErrInvalidInput)
	}
	ok, err := commitScript.Run(ctx, repo.rdb,
		[]string{entryKey(claim.Key), claimedIndex, terminalIndex},
		claim.Token, string(state), now.UnixMilli(), detail, claim.Key.String(),
	).Int64()
	if err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("Commit %s: %w", claim.Key, entity.ErrClaimLost)
	}
	return nil
}

func (repo *LedgerRepo) ReclaimStale(ctx context.Context, now time.Time) (entity.StaleReport, error) {
	cutoff := repo.policy.StaleCutoff(now).UnixMilli()
	expiry := repo.policy.ExpiryCutoff(now).UnixMilli()
	members, err := repo.rdb.ZRangeByScore(ctx, claimedIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return entity.StaleReport{}, fmt.Errorf("ReclaimStale: %w", err)
	}

	var report entity.StaleReport
	for _, member := range members {
		key, err := entity.ParseDispatchKey(member)
		if err != nil {
			// not ours; drop it from the index
			_ = repo.rdb.ZRem(ctx, claimedIndex, member).Err()
			continue
		}
		res, err := sweepScript.Run(ctx, repo.rdb,
			[]string{entryKey(key), claimedIndex, terminalIndex},
			cutoff, repo.policy.MaxAttempts, now.UnixMilli(), entity.StaleExhaustedMessage, member,
			expiry, entity.StaleExpiredMessage,
		).Int64Slice()
		if err != nil {
			return report, fmt.Errorf("ReclaimStale %s: %w", key, err)
		}
		if len(res) != 3 || res[0] == sweepNotStale {
			continue
		}
		sc := entity.StaleClaim{Key: key, ClaimedAt: time.UnixMilli(res[1]).UTC(), Attempts: int(res[2])}
		switch res[0] {
		case sweepExhausted:
			report.Exhausted = append(report.Exhausted, sc)
		case sweepExpired:
			report.Expired = append(report.Expired, sc)
		case sweepReclaimable:
			report.Reclaimable = append(report.Reclaimable, sc)
		}
	}
	return report, nil
}

func (repo *LedgerRepo) Entries(ctx context.Context, sessionIDs []string) ([]entity.LedgerEntry, error) {
	entries := make([]entity.LedgerEntry, 0, len(sessionIDs)*3)
	if len(sessionIDs) == 0 {
		return entries, nil
	}

	type pending struct {
		key entity.DispatchKey
		cmd *redis.MapStringStringCmd
	}
	var cmds []pending

	pipe := repo.rdb.Pipeline()
	for _, id := range sessionIDs {
		for _, rt := range entity.ReminderTypes() {
			key := entity.DispatchKey{SessionID: id, Type: rt}
			cmds = append(cmds, pending{key: key, cmd: pipe.HGetAll(ctx, entryKey(key))})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("Entries: %w", err)
	}

	for _, p := range cmds {
		fields, err := p.cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("Entries: %w", err)
		}
		if e, ok := parseEntry(p.key, fields); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (repo *LedgerRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	members, err := repo.rdb.ZRangeByScore(ctx, terminalIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("PurgeBefore: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := repo.rdb.TxPipeline()
	for _, member := range members {
		if key, err := entity.ParseDispatchKey(member); err == nil {
			pipe.Del(ctx, entryKey(key))
		}
		pipe.ZRem(ctx, terminalIndex, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("PurgeBefore: %w", err)
	}
	return int64(len(members)), nil
}

func entryKey(key entity.DispatchKey) string {
	return keyPrefix + key.SessionID + ":" + string(key.Type)
}

// parseEntry converts an HGETALL reply. An empty reply means the key was never claimed.
func parseEntry(key entity.DispatchKey, fields map[string]string) (entity.LedgerEntry, bool) {
	if len(fields) == 0 || fields["state"] == "" {
		return entity.LedgerEntry{}, false
	}
	e := entity.LedgerEntry{
		Key:        key,
		State:      entity.LedgerState(fields["state"]),
		ClaimToken: fields["token"],
		LastError:  fields["last_error"],
	}
	if ms, err := strconv.ParseInt(fields["claimed_at"], 10, 64); err == nil {
		e.ClaimedAt = time.UnixMilli(ms).UTC()
	}
	if n, err := strconv.Atoi(fields["attempts"]); err == nil {
		e.Attempts = n
	}
	if ms, err := strconv.ParseInt(fields["committed_at"], 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		e.CommittedAt = &t
	}
	return e, true
}
