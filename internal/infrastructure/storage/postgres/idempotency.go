package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pharmastock/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent ledger write.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
)

// staleAfter is how long a pending key may stay unfinished before another
// request can reclaim it.
const staleAfter = time.Minute

// IdempotencyRecord is one row of stock_idempotency.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// IdempotencyReplay is a stored response to send back for a repeated request.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore remembers the response of every ledger write that carried
// an idempotency key, so a client retrying after a timeout does not record
// the same sale twice.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl, now: time.Now}
}

// Acquire claims key for the caller.
//
// It returns (nil, nil) when the caller owns the key and should run the
// request, a replay when the key already completed, and an error when the key
// belongs to a different request or is still being processed.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.now().UTC()

	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO stock_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, userID, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	record, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, record, userID, operation, requestHash)
}

func (s *IdempotencyStore) resolve(ctx context.Context, record *IdempotencyRecord, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	if record.UserID != userID || record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(record.Key).
			WithDetail("operation", record.Operation)
	}

	if record.Status == IdempotencyStatusSuccess {
		return &IdempotencyReplay{
			StatusCode:  normalizeReplayStatus(record.StatusCode),
			ContentType: normalizeReplayContentType(record.ContentType),
			Body:        record.Response,
		}, nil
	}

	// Pending: reclaim it if the original request died mid-flight.
	now := s.now().UTC()
	if now.Sub(record.UpdatedAt) <= staleAfter {
		return nil, apperror.NewIdempotencyConflict(record.Key)
	}
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE stock_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
	`, now, record.Key, IdempotencyStatusPending, record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(record.Key)
	}
	return nil, nil
}

func (s *IdempotencyStore) get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var r IdempotencyRecord
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT idempotency_key, user_id, operation, status, request_hash,
		       COALESCE(response, ''::bytea), COALESCE(response_status, 0), COALESCE(response_content_type, ''),
		       created_at, updated_at, expires_at
		FROM stock_idempotency WHERE idempotency_key = $1
	`, key).Scan(
		&r.Key, &r.UserID, &r.Operation, &r.Status, &r.RequestHash,
		&r.Response, &r.StatusCode, &r.ContentType,
		&r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Released between our insert attempt and the read.
		return nil, apperror.NewIdempotencyConflict(key)
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	return &r, nil
}

// Complete stores the response for later replay.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE stock_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, IdempotencyStatusSuccess, body, statusCode, contentType, s.now().UTC(), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets a pending key so the client can retry a failed request
// with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM stock_idempotency WHERE idempotency_key = $1 AND status = $2
	`, key, IdempotencyStatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes keys past their TTL.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM stock_idempotency WHERE expires_at < $1
	`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func normalizeReplayStatus(status int) int {
	if status == 0 {
		return 200
	}
	return status
}

func normalizeReplayContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}
