package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCounterRepository remembers which file ids a browser session has already been counted for.
// Sets live in Redis under "session:<id>:<kind>" and expire with the session TTL. Without a Redis
// client an in-process map with the same sliding expiry is used, which is enough for a single instance.
type SessionCounterRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	local     map[string]*localSessionSet
	lastPrune time.Time
}

type localSessionSet struct {
	ids     map[string]struct{}
	expires time.Time
}

// NewSessionCounterRepository constructs the repository.
func NewSessionCounterRepository(client *redis.Client, ttl time.Duration) *SessionCounterRepository {
	return &SessionCounterRepository{client: client, ttl: ttl, now: time.Now, local: make(map[string]*localSessionSet)}
}

func sessionKey(sessionID string, kind HistoryKind) string {
	return fmt.Sprintf("session:%s:%s", sessionID, kind)
}

// Mark adds fileID to the session set and reports whether it was not there before.
func (r *SessionCounterRepository) Mark(ctx context.Context, sessionID string, kind HistoryKind, fileID string) (bool, error) {
	key := sessionKey(sessionID, kind)
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		now := r.now()
		r.pruneLocked(now)
		set := r.liveLocked(key, now)
		if set == nil {
			set = &localSessionSet{ids: make(map[string]struct{})}
			r.local[key] = set
		}
		if r.ttl > 0 {
			set.expires = now.Add(r.ttl)
		}
		if _, seen := set.ids[fileID]; seen {
			return false, nil
		}
		set.ids[fileID] = struct{}{}
		return true, nil
	}

	added, err := r.client.SAdd(ctx, key, fileID).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd %s: %w", key, err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return added > 0, fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return added > 0, nil
}

// Members returns the file ids counted for the session.
func (r *SessionCounterRepository) Members(ctx context.Context, sessionID string, kind HistoryKind) ([]string, error) {
	key := sessionKey(sessionID, kind)
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		set := r.liveLocked(key, r.now())
		if set == nil {
			return []string{}, nil
		}
		ids := make([]string, 0, len(set.ids))
		for id := range set.ids {
			ids = append(ids, id)
		}
		return ids, nil
	}

	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key, err)
	}
	return ids, nil
}

// liveLocked returns the set for key, dropping it when expired. Caller holds r.mu.
func (r *SessionCounterRepository) liveLocked(key string, now time.Time) *localSessionSet {
	set, ok := r.local[key]
	if !ok {
		return nil
	}
	if !set.expires.IsZero() && !now.Before(set.expires) {
		delete(r.local, key)
		return nil
	}
	return set
}

// pruneLocked sweeps expired sets at most once per TTL. Caller holds r.mu.
func (r *SessionCounterRepository) pruneLocked(now time.Time) {
	if r.ttl <= 0 || now.Sub(r.lastPrune) < r.ttl {
		return
	}
	r.lastPrune = now
	for key, set := range r.local {
		if !now.Before(set.expires) {
			delete(r.local, key)
		}
	}
}
