package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
)

type claimStatus string

const (
	claimStatusProcessing claimStatus = "processing"
	claimStatusRetryReady claimStatus = "retry_ready"
	claimStatusComplete   claimStatus = "complete"
)

type claimEntry struct {
	Status         claimStatus
	ClaimID        string
	Attempts       int
	KeyTTL         time.Duration
	LeaseExpiresAt time.Time
	RetryAt        time.Time
}

// InMemoryClaimStore is a process-local core.IdempotencyClaimStore. A
// processing claim blocks duplicates until its lease runs out; a completed
// one until its key TTL does.
type InMemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		entries: map[string]claimEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *InMemoryClaimStore) Claim(_ context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: idempotency store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: idempotency key is required", nil)
	}
	now := s.now()
	if lease <= 0 {
		lease = 10 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	entry, exists := s.entries[key]
	if exists {
		switch entry.Status {
		case claimStatusComplete:
			if now.Before(entry.LeaseExpiresAt) {
				return "", false, nil
			}
		case claimStatusProcessing:
			if now.Before(entry.LeaseExpiresAt) {
				return "", false, nil
			}
		case claimStatusRetryReady:
			if !entry.RetryAt.IsZero() && now.Before(entry.RetryAt) {
				return "", false, nil
			}
		}
		if entry.ClaimID != "" {
			delete(s.claims, entry.ClaimID)
		}
	}

	claimID := s.nextClaimID()
	s.entries[key] = claimEntry{
		Status:         claimStatusProcessing,
		ClaimID:        claimID,
		Attempts:       entry.Attempts + 1,
		KeyTTL:         lease,
		LeaseExpiresAt: now.Add(lease),
	}
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, claimID string) error {
	return s.settle(claimID, func(entry *claimEntry, now time.Time) {
		ttl := entry.KeyTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		entry.Status = claimStatusComplete
		entry.LeaseExpiresAt = now.Add(ttl)
		entry.RetryAt = time.Time{}
	})
}

func (s *InMemoryClaimStore) Fail(_ context.Context, claimID string, _ error, retryAt time.Time) error {
	return s.settle(claimID, func(entry *claimEntry, now time.Time) {
		if retryAt.IsZero() {
			retryAt = now
		}
		entry.Status = claimStatusRetryReady
		entry.RetryAt = retryAt.UTC()
		entry.LeaseExpiresAt = time.Time{}
	})
}

// Attempts reports how many times key has been claimed.
func (s *InMemoryClaimStore) Attempts(key string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[strings.TrimSpace(key)].Attempts
}

func (s *InMemoryClaimStore) settle(claimID string, apply func(entry *claimEntry, now time.Time)) error {
	if s == nil {
		return inboundInternal("inbound: idempotency store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	delete(s.claims, claimID)
	entry, exists := s.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != claimStatusProcessing {
		return nil
	}
	apply(&entry, s.now())
	s.entries[key] = entry
	return nil
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InMemoryClaimStore) nextClaimID() string {
	s.nextID++
	return fmt.Sprintf("claim_%d", s.nextID)
}

func (s *InMemoryClaimStore) evictExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if entry.Status != claimStatusComplete {
			continue
		}
		if !now.Before(entry.LeaseExpiresAt) {
			delete(s.entries, key)
		}
	}
}

var _ core.IdempotencyClaimStore = (*InMemoryClaimStore)(nil)
