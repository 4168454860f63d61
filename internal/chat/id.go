package chat

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewSessionID returns a fresh ULID. Session IDs are time-ordered and
// unique within a user's namespace.
func NewSessionID() (string, error) {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
