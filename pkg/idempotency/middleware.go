// Package idempotency replays the stored response of a value-moving request
// when a client retries it with the same Idempotency-Key.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderIdempotencyKey is the HTTP header for idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderReplayed marks a response served from the store
	HeaderReplayed = "Idempotent-Replayed"

	// MaxBodySize matches the API request size limit
	MaxBodySize = 1 << 20

	// MaxKeyLength bounds accepted keys
	MaxKeyLength = 255

	// DefaultTTL is how long completed responses are replayed
	DefaultTTL = 24 * time.Hour

	// DefaultLockTTL is how long a key stays reserved by an unfinished request
	DefaultLockTTL = 2 * time.Minute
)

// Record is a stored request outcome. Status 0 means the request is still
// in progress.
type Record struct {
	Key         string `json:"key"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	RequestHash string `json:"requestHash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body,omitempty"`
}

// Pending reports whether the original request has not finished yet.
func (r *Record) Pending() bool {
	return r.Status == 0
}

// Store persists idempotency records. Get returns nil, nil for unknown keys.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Reserve(ctx context.Context, record *Record, ttl time.Duration) (bool, error)
	Complete(ctx context.Context, record *Record, ttl time.Duration) error
}

// responseWriter wraps gin.ResponseWriter to capture response
type responseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Middleware creates an idempotency middleware. Requests without the header
// pass through; store failures fail open.
func Middleware(store Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to state-changing methods
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodDelete &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		// Idempotency is optional; if not provided, proceed normally
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		if err := ValidateKey(key); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", err.Error())
			return
		}

		bodyBytes, err := ReadBody(c.Request.Body, MaxBodySize)
		if err != nil {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
			return
		}
		// Restore body for downstream handlers
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		ctx := c.Request.Context()
		record := &Record{
			Key:         key,
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			RequestHash: HashRequest(c.Request.Method, c.Request.URL.Path, bodyBytes),
		}

		existing, err := store.Get(ctx, key)
		if err != nil {
			logger.Error("Failed to check idempotency key",
				zap.String("idempotency_key", key),
				zap.Error(err))
			c.Next()
			return
		}
		if existing != nil {
			replay(c, logger, existing, record.RequestHash)
			return
		}

		reserved, err := store.Reserve(ctx, record, DefaultLockTTL)
		if err != nil {
			logger.Error("Failed to reserve idempotency key",
				zap.String("idempotency_key", key),
				zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			abort(c, http.StatusConflict, "IDEMPOTENCY_CONFLICT", "A request with this idempotency key is in progress")
			return
		}

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
			status:         http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		record.Status = writer.status
		record.Body = writer.body.Bytes()
		// The request context may already be cancelled by a disconnecting client.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := store.Complete(storeCtx, record, DefaultTTL); err != nil {
			logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", key),
				zap.Error(err))
			return
		}
		logger.Debug("Stored idempotency key",
			zap.String("idempotency_key", key),
			zap.Int("status", record.Status))
	}
}

func replay(c *gin.Context, logger *zap.Logger, existing *Record, requestHash string) {
	if ok, reason := ShouldReplay(existing, requestHash); !ok {
		logger.Warn("Idempotency key conflict",
			zap.String("idempotency_key", existing.Key),
			zap.String("reason", reason))
		abort(c, http.StatusConflict, "IDEMPOTENCY_CONFLICT", reason)
		return
	}

	logger.Info("Returning stored response",
		zap.String("idempotency_key", existing.Key),
		zap.Int("status", existing.Status))
	c.Header(HeaderReplayed, "true")
	c.Data(existing.Status, "application/json; charset=utf-8", existing.Body)
	c.Abort()
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error":      message,
		"code":       code,
		"request_id": c.GetString("request_id"),
	})
}

// ValidateKey checks that a key is non-empty printable ASCII of bounded length.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("idempotency key is empty")
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("idempotency key exceeds %d characters", MaxKeyLength)
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return errors.New("idempotency key must be printable ASCII without spaces")
		}
	}
	return nil
}

// ReadBody reads at most limit bytes of body.
func ReadBody(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("request body exceeds %d bytes", limit)
	}
	return data, nil
}

// HashRequest fingerprints a request so a reused key with a different
// request can be rejected.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ShouldReplay decides whether a stored record answers the current request.
func ShouldReplay(existing *Record, requestHash string) (bool, string) {
	if existing.RequestHash != requestHash {
		return false, "Idempotency key was used with a different request"
	}
	if existing.Pending() {
		return false, "A request with this idempotency key is in progress"
	}
	return true, ""
}
