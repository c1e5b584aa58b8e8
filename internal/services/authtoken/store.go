package authtoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("token is invalid or expired")

// Purpose scopes a token so one issued for a reset cannot confirm an
// email change.
type Purpose string

const (
	PasswordReset Purpose = "password_reset"
	EmailChange   Purpose = "email_change"
)

// Store issues one-shot tokens bound to a subject.
type Store interface {
	Issue(ctx context.Context, purpose Purpose, subject string) (string, error)
	// Consume returns the subject and invalidates the token.
	Consume(ctx context.Context, purpose Purpose, token string) (string, error)
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func key(purpose Purpose, token string) string {
	return "planmarket:token:" + string(purpose) + ":" + token
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, purpose Purpose, subject string) (string, error) {
	tok := newToken()
	if err := s.rdb.Set(ctx, key(purpose, tok), subject, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return tok, nil
}

func (s *RedisStore) Consume(ctx context.Context, purpose Purpose, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	subject, err := s.rdb.GetDel(ctx, key(purpose, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("consume token: %w", err)
	}
	return subject, nil
}

type memEntry struct {
	subject string
	expires time.Time
}

// MemoryStore keeps tokens in process.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memEntry{}}
}

func (s *MemoryStore) Issue(_ context.Context, purpose Purpose, subject string) (string, error) {
	tok := newToken()
	s.mu.Lock()
	s.entries[key(purpose, tok)] = memEntry{subject: subject, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return tok, nil
}

func (s *MemoryStore) Consume(_ context.Context, purpose Purpose, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(purpose, token)
	e, ok := s.entries[k]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(s.entries, k)
	if s.now().After(e.expires) {
		return "", ErrInvalidToken
	}
	return e.subject, nil
}
