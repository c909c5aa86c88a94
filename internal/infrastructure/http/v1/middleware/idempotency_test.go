package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/infrastructure/storage/postgres"
)

type memKey struct {
	hash   string
	done   bool
	replay postgres.IdempotencyReplay
}

type memIdempotency struct {
	mu       sync.Mutex
	keys     map[string]*memKey
	released int
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]*memKey)}
}

func (m *memIdempotency) Acquire(_ context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := userID + "|" + operation + "|" + requestHash
	k, ok := m.keys[key]
	if !ok {
		m.keys[key] = &memKey{hash: hash}
		return nil, nil
	}
	if k.hash != hash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if !k.done {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	r := k.replay
	return &r, nil
}

func (m *memIdempotency) Complete(_ context.Context, key string, statusCode int, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.keys[key]
	k.done = true
	k.replay = postgres.IdempotencyReplay{StatusCode: statusCode, ContentType: contentType, Body: append([]byte(nil), body...)}
	return nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	m.released++
	return nil
}

func newIdempotentRouter(store IdempotencyStore) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)
	calls := 0
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(Idempotency(store))
	r.POST("/sales", func(c *gin.Context) {
		calls++
		if c.Query("fail") != "" {
			_ = c.Error(apperror.NewInsufficientStock("p1", "B1", 5, 2))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})
	return r, &calls
}

func post(r http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	r, calls := newIdempotentRouter(newMemIdempotency())

	first := post(r, "/sales", "k-1", `{"quantity":3}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(r, "/sales", "k-1", `{"quantity":3}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 1, *calls)
}

func TestIdempotency_WithoutKeyAlwaysRuns(t *testing.T) {
	r, calls := newIdempotentRouter(newMemIdempotency())

	post(r, "/sales", "", `{}`)
	post(r, "/sales", "", `{}`)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_RejectsReusedKeyWithDifferentBody(t *testing.T) {
	r, _ := newIdempotentRouter(newMemIdempotency())

	post(r, "/sales", "k-2", `{"quantity":3}`)
	w := post(r, "/sales", "k-2", `{"quantity":4}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), apperror.CodeIdempotency)
}

func TestIdempotency_ReleasesKeyOnFailure(t *testing.T) {
	store := newMemIdempotency()
	r, calls := newIdempotentRouter(store)

	w := post(r, "/sales?fail=1", "k-3", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, store.released)

	w = post(r, "/sales?fail=1", "k-3", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_RejectsOversizedKey(t *testing.T) {
	r, calls := newIdempotentRouter(newMemIdempotency())

	w := post(r, "/sales", strings.Repeat("k", 200), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, *calls)
}

func TestIdempotency_RejectsUnreadableBody(t *testing.T) {
	store := newMemIdempotency()
	r, calls := newIdempotentRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/sales", iotest.ErrReader(errors.New("connection reset")))
	req.Header.Set(HeaderIdempotencyKey, "k-4")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apperror.CodeValidation)
	assert.Equal(t, 0, *calls)
	assert.Empty(t, store.keys)
}
