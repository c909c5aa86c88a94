package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/apperror"
	appctx "pharmastock/internal/core/context"
	"pharmastock/internal/infrastructure/storage/postgres"
	"pharmastock/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

const (
	maxIdempotencyKeyLen    = 128
	maxIdempotencyBodyBytes = 8 << 20 // bulk purchase uploads
)

// IdempotencyStore is implemented by postgres.IdempotencyStore.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	Release(ctx context.Context, key string) error
}

// captureWriter tees the response body so it can be stored for replay.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a mutating request repeats an
// X-Idempotency-Key. Only 2xx responses are stored; any other outcome
// releases the key so the client may retry.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			_ = c.Error(apperror.NewFieldValidation(HeaderIdempotencyKey, "idempotency key is too long").
				WithDetail("max_length", maxIdempotencyKeyLen))
			c.Abort()
			return
		}

		userID := ""
		if user := appctx.GetUser(c.Request.Context()); user != nil {
			userID = user.UserID
		}

		var body []byte
		if c.Request.Body != nil {
			limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
			var err error
			if body, err = io.ReadAll(limited); err != nil {
				_ = c.Error(apperror.NewValidation("could not read request body").WithDetail("reason", err.Error()))
				c.Abort()
				return
			}
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		operation := c.Request.Method + " " + c.Request.URL.Path
		ctx := c.Request.Context()

		replay, err := store.Acquire(ctx, key, userID, operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}
		if replay != nil {
			c.Header("Idempotent-Replay", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		// A cancelled request context must not prevent bookkeeping.
		ctx = context.WithoutCancel(ctx)
		status := writer.Status()
		if len(c.Errors) == 0 && writer.Written() && status >= 200 && status < 300 {
			if err := store.Complete(ctx, key, status, writer.Header().Get("Content-Type"), writer.body.Bytes()); err != nil {
				logger.Error(ctx, "failed to store idempotent response", "key", key, "error", err)
			}
			return
		}
		if err := store.Release(ctx, key); err != nil {
			logger.Error(ctx, "failed to release idempotency key", "key", key, "error", err)
		}
	}
}
