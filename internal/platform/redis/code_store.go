package redis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "enroll:code:"

const (
	redeemMissing  = 0
	redeemMismatch = 1
	redeemOK       = 2
)

// redeemScript compares the stored code with ARGV[1] and deletes the key on a
// match, in one server-side step.
var redeemScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 0
end
local stored = cjson.decode(raw)
if stored.code ~= ARGV[1] then
	return 1
end
redis.call('DEL', KEYS[1])
return 2
`)

type storedCode struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

// CodeStore implements store.CodeStore on Redis. Expiry is delegated to the
// key TTL.
type CodeStore struct {
	client *redis.Client
}

var _ store.CodeStore = (*CodeStore)(nil)

// NewCodeStore creates a CodeStore. The client lifecycle is managed by the caller.
func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

// WithTx implements store.CodeStore.WithTx. Redis writes do not join SQL
// transactions.
func (s *CodeStore) WithTx(*sql.Tx) store.CodeStore {
	return s
}

func codeKey(email string) string {
	return codeKeyPrefix + email
}

// Put implements store.CodeStore.Put.
func (s *CodeStore) Put(ctx context.Context, code *domain.VerificationCode, ttl time.Duration) error {
	raw, err := json.Marshal(storedCode{Code: code.Code, IssuedAt: code.IssuedAt})
	if err != nil {
		return fmt.Errorf("failed to encode verification code: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, codeKey(code.Email), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	return nil
}

// Get implements store.CodeStore.Get.
func (s *CodeStore) Get(ctx context.Context, email string) (*domain.VerificationCode, error) {
	raw, err := s.client.Get(ctx, codeKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}

	var stored storedCode
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode verification code: %w", err)
	}
	return &domain.VerificationCode{Email: email, Code: stored.Code, IssuedAt: stored.IssuedAt}, nil
}

// Redeem implements store.CodeStore.Redeem.
func (s *CodeStore) Redeem(ctx context.Context, email, code string) error {
	result, err := redeemScript.Run(ctx, s.client, []string{codeKey(email)}, code).Int()
	if err != nil {
		return fmt.Errorf("failed to redeem verification code: %w", err)
	}

	switch result {
	case redeemOK:
		return nil
	case redeemMismatch:
		return store.ErrMismatch
	case redeemMissing:
		return store.ErrCodeNotFound
	default:
		return fmt.Errorf("unexpected redeem result %d", result)
	}
}

// Delete implements store.CodeStore.Delete.
func (s *CodeStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, codeKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	return nil
}
