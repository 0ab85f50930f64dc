package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewID32 returns exactly 32 lowercase hex characters (a random UUID without hyphens).
func NewID32() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewEventID returns a canonical hyphenated UUID for events and request correlation.
func NewEventID() string { return uuid.NewString() }
