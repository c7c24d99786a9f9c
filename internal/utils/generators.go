package utils

import (
	"github.com/google/uuid"
)

// GenerateSessionID returns a random identifier for an upload session.
func GenerateSessionID() string {
	return uuid.NewString()
}

// IsSessionID reports whether s has the shape GenerateSessionID produces.
func IsSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
