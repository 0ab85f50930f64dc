package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	HeaderUserID    = "Ax-User-Id"

	// ContextUserID holds the validated Ax-User-Id for handlers.
	ContextUserID = "user_id"
)

var reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)

// requestMeta is what every mutating request must carry.
type requestMeta struct {
	RequestID string
	At        time.Time
	UserID    string
}

func readMeta(h http.Header, now time.Time, skew time.Duration) (requestMeta, error) {
	var m requestMeta

	m.RequestID = strings.ToLower(strings.TrimSpace(h.Get(HeaderRequestID)))
	if m.RequestID == "" {
		return m, fmt.Errorf("missing %s", HeaderRequestID)
	}
	if !validRequestID(m.RequestID) {
		return m, fmt.Errorf("invalid %s format", HeaderRequestID)
	}

	at, err := parseRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return m, err
	}
	if d := at.Sub(now); d > skew || d < -skew {
		return m, fmt.Errorf("%s too skewed", HeaderRequestAt)
	}
	m.At = at

	m.UserID = strings.TrimSpace(h.Get(HeaderUserID))
	if m.UserID == "" {
		return m, fmt.Errorf("missing %s", HeaderUserID)
	}
	if !reHex32.MatchString(m.UserID) {
		return m, fmt.Errorf("invalid %s", HeaderUserID)
	}
	return m, nil
}

// validRequestID accepts 32-char hex or a canonical RFC 4122 uuid.
func validRequestID(id string) bool {
	if reHex32.MatchString(id) {
		return true
	}
	if len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	return err == nil && u.Variant() == uuid.RFC4122 && u.Version() >= 1 && u.Version() <= 8
}

// parseRequestAt takes epoch seconds, epoch milliseconds, or RFC3339 with a zone.
// Timestamps without a zone are rejected.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %s", HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	// RFC3339Nano also parses inputs without fractional seconds
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}

func idempotencyKey(method, route string, m requestMeta) string {
	return "idemp:lib:" + m.UserID + ":" + strings.ToLower(method) + ":" + route + ":" + m.RequestID
}
