package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// How long a pending entry blocks retries if the handler never finishes.
	defaultLockTTL = 60 * time.Second
	// Allowed client/server clock skew for Ax-Request-At.
	defaultMaxSkew = 10 * time.Minute

	storeTimeout = 2 * time.Second

	HeaderReplayed = "Ax-Idempotent-Replay"
)

// Idempotency makes mutating routes safe to retry. The key is user id + method + route + Ax-Request-Id.
// The first completed response is stored for ttl and replayed verbatim; 5xx responses are not stored,
// so a client may retry a transient failure with the same Ax-Request-Id.
type Idempotency struct {
	store   store
	ttl     time.Duration
	lockTTL time.Duration
	skew    time.Duration
	log     *logrus.Logger
	now     func() time.Time
}

func NewIdempotency(rdb *redis.Client, ttl time.Duration, log *logrus.Logger) *Idempotency {
	return &Idempotency{
		store:   store{rdb: rdb},
		ttl:     ttl,
		lockTTL: defaultLockTTL,
		skew:    defaultMaxSkew,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type captureWriter struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (w *captureWriter) WriteHeader(code int) { w.code = code; w.ResponseWriter.WriteHeader(code) }

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func (m *Idempotency) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !mutating(req.Method) {
				return next(c)
			}

			meta, err := readMeta(req.Header, m.now(), m.skew)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}
			c.Set(ContextUserID, meta.UserID)

			var body []byte
			if req.Body != nil {
				if body, err = io.ReadAll(req.Body); err != nil {
					return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
				}
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			sha := sha256Hex(body)

			key := idempotencyKey(req.Method, c.Path(), meta)
			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			existing, err := m.store.reserve(ctx, key, sha, meta.At, m.lockTTL)
			cancel()
			if err != nil {
				m.log.WithField("key", key).WithError(err).Warn("idempotency store unavailable")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if existing != nil {
				return m.replay(c, existing, sha)
			}

			w := &captureWriter{ResponseWriter: c.Response().Writer, code: http.StatusOK}
			c.Response().Writer = w
			if err := next(c); err != nil {
				c.Error(err)
			}

			// detached from the request: the client may already have gone
			ctx, cancel = context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()

			if w.code >= http.StatusInternalServerError {
				if err := m.store.release(ctx, key); err != nil {
					m.log.WithField("key", key).WithError(err).Warn("idempotency: release failed")
				}
				return nil
			}
			final := record{
				Code:        w.code,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        w.buf.Bytes(),
			}
			if err := m.store.commit(ctx, key, final, m.ttl); err != nil {
				m.log.WithField("key", key).WithError(err).Warn("idempotency: commit failed")
			}
			return nil
		}
	}
}

func (m *Idempotency) replay(c echo.Context, r *record, sha string) error {
	switch {
	case r.BodySHA256 != sha:
		return c.JSON(http.StatusConflict, map[string]string{"error": HeaderRequestID + " reused with different body"})
	case r.Pending || r.Code == 0:
		return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
	}
	ctype := r.ContentType
	if ctype == "" {
		ctype = echo.MIMEApplicationJSON
	}
	c.Response().Header().Set(HeaderReplayed, "true")
	return c.Blob(r.Code, ctype, r.Body)
}
