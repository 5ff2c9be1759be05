package token

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// maxGenerateAttempts bounds the retry loop on token id collisions. With
// 256-bit ids a collision indicates entropy-source failure, not bad luck.
const maxGenerateAttempts = 5

// ExistenceChecker confirms the shared file is present before a token is
// minted. Optional hardening; the token service works without one.
type ExistenceChecker interface {
	Exists(ctx context.Context, serverID, path string) (bool, error)
}

// Manager handles token issuance, evaluation and revocation. It is the only
// gate in front of the file-serving collaborator.
type Manager interface {
	IssueSimple(ctx context.Context, serverID, path, filename string, duration time.Duration) (*Token, error)
	IssueScheduled(ctx context.Context, serverID, path, filename string, weekdays []time.Weekday, windowStart, windowEnd ClockTime, expiryDate time.Time) (*Token, error)
	CheckAccess(ctx context.Context, id string) (*Token, Decision, error)
	Get(ctx context.Context, id string) (*Token, error)
	List(ctx context.Context) ([]*Token, error)
	Revoke(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int, error)
	Now() time.Time
}

// TokenManager implements Manager.
type TokenManager struct {
	store   Store
	clock   Clock
	checker ExistenceChecker
}

// NewManager creates a new token manager.
func NewManager(store Store, clock Clock) *TokenManager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenManager{
		store: store,
		clock: clock,
	}
}

// NewManagerWithDB creates a token manager backed by a SQLite database in
// dataDir.
func NewManagerWithDB(dataDir string) (*TokenManager, error) {
	dbPath := filepath.Join(dataDir, "ftpshare.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	return NewManager(store, SystemClock{}), nil
}

// SetExistenceChecker enables the pre-issuance file existence check.
func (m *TokenManager) SetExistenceChecker(checker ExistenceChecker) {
	m.checker = checker
}

// Now exposes the manager's clock for presentation-layer derived fields.
func (m *TokenManager) Now() time.Time {
	return m.clock.Now()
}

// IssueSimple mints a token valid for the given duration starting now.
func (m *TokenManager) IssueSimple(ctx context.Context, serverID, path, filename string, duration time.Duration) (*Token, error) {
	now := m.clock.Now()
	policy, err := NewSimplePolicy(now, duration)
	if err != nil {
		return nil, err
	}
	return m.issue(ctx, serverID, path, filename, now, policy)
}

// IssueScheduled mints a token valid only inside a recurring weekly window,
// through the end of the expiry calendar day.
func (m *TokenManager) IssueScheduled(ctx context.Context, serverID, path, filename string, weekdays []time.Weekday, windowStart, windowEnd ClockTime, expiryDate time.Time) (*Token, error) {
	now := m.clock.Now()
	policy, err := NewScheduledPolicy(now, weekdays, windowStart, windowEnd, expiryDate)
	if err != nil {
		return nil, err
	}
	return m.issue(ctx, serverID, path, filename, now, policy)
}

func (m *TokenManager) issue(ctx context.Context, serverID, path, filename string, now time.Time, policy Policy) (*Token, error) {
	if serverID == "" || path == "" {
		return nil, fmt.Errorf("%w: server id and path are required", ErrInvalidRequest)
	}

	if m.checker != nil {
		exists, err := m.checker.Exists(ctx, serverID, path)
		if err != nil {
			return nil, fmt.Errorf("failed to check file existence: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: file %s does not exist on server %s", ErrInvalidRequest, path, serverID)
		}
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		id, err := generateTokenID()
		if err != nil {
			return nil, err
		}

		tok := &Token{
			ID:        id,
			ServerID:  serverID,
			Path:      path,
			Filename:  filename,
			CreatedAt: now,
			Policy:    policy,
		}

		err = m.store.Insert(ctx, tok)
		if err == nil {
			return tok, nil
		}
		if err != ErrDuplicateID {
			return nil, err
		}

		logrus.WithField("attempt", attempt+1).Warn("Token id collision, regenerating")
	}

	return nil, ErrGenerationExhausted
}

// CheckAccess re-evaluates a token's policy against the current time. Never
// cached: validity is time-dependent.
func (m *TokenManager) CheckAccess(ctx context.Context, id string) (*Token, Decision, error) {
	tok, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, DecisionExpired, err
	}
	return tok, Evaluate(tok.Policy, m.clock.Now()), nil
}

// Get retrieves a token by id without evaluating its policy.
func (m *TokenManager) Get(ctx context.Context, id string) (*Token, error) {
	return m.store.Get(ctx, id)
}

// List returns all live tokens.
func (m *TokenManager) List(ctx context.Context) ([]*Token, error) {
	return m.store.List(ctx)
}

// Revoke deletes a token. Revoking an unknown or already-revoked id fails
// with ErrNotFound and has no side effects.
func (m *TokenManager) Revoke(ctx context.Context, id string) error {
	return m.store.Remove(ctx, id)
}

// DeleteExpired removes all tokens past their absolute expiry.
func (m *TokenManager) DeleteExpired(ctx context.Context) (int, error) {
	return m.store.RemoveExpired(ctx, m.clock.Now())
}
