package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"agegate/internal/verification/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

const pendingKeyPrefix = "pending_session:"

// pendingJSON is the JSON-serializable representation of a PendingSession.
// Explicit tags control the serialization format.
type pendingJSON struct {
	SessionID string `json:"session_id"`
	Verifier  string `json:"verifier"`
	WidgetID  string `json:"widget_id"`
	Provider  string `json:"provider"`
	Purpose   string `json:"purpose"`
	LinkID    string `json:"link_id,omitempty"`
	CreatedAt int64  `json:"created_at"` // Unix nano
}

func pendingToJSON(p *models.PendingSession) *pendingJSON {
	j := &pendingJSON{
		SessionID: p.SessionID.String(),
		Verifier:  p.Verifier,
		WidgetID:  p.WidgetID.String(),
		Provider:  p.Provider.String(),
		Purpose:   string(p.Purpose),
		CreatedAt: p.CreatedAt.UnixNano(),
	}
	if !p.LinkID.IsNil() {
		j.LinkID = p.LinkID.String()
	}
	return j
}

func pendingFromJSON(j *pendingJSON) (*models.PendingSession, error) {
	sessionID, err := uuid.Parse(j.SessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}

	p := &models.PendingSession{
		SessionID: domain.SessionID(sessionID),
		Verifier:  j.Verifier,
		WidgetID:  domain.WidgetID(j.WidgetID),
		Provider:  domain.Provider(j.Provider),
		Purpose:   models.Purpose(j.Purpose),
		CreatedAt: time.Unix(0, j.CreatedAt),
	}
	if j.LinkID != "" {
		linkID, err := uuid.Parse(j.LinkID)
		if err != nil {
			return nil, fmt.Errorf("parse link id: %w", err)
		}
		p.LinkID = domain.LinkID(linkID)
	}
	return p, nil
}

// RedisStore persists pending sessions in Redis. This is the production
// implementation: TTL handling and the atomic GETDEL redemption work across
// multiple gateway instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed pending session store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(stateToken string) string {
	return pendingKeyPrefix + stateToken
}

func (s *RedisStore) Put(ctx context.Context, stateToken string, pending *models.PendingSession, ttl time.Duration) error {
	data, err := json.Marshal(pendingToJSON(pending))
	if err != nil {
		return fmt.Errorf("marshal pending session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(stateToken), data, ttl).Err(); err != nil {
		return fmt.Errorf("store pending session: %w", err)
	}
	return nil
}

// Redeem uses GETDEL so the read and the delete are a single Redis command.
// A provider retrying callback delivery races here; exactly one retry wins.
func (s *RedisStore) Redeem(ctx context.Context, stateToken string) (*models.PendingSession, error) {
	data, err := s.client.GetDel(ctx, s.key(stateToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("redeem pending session: %w", err)
	}

	var j pendingJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal pending session: %w", err)
	}
	return pendingFromJSON(&j)
}
