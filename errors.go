package sudocache

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound reports that the identity store has no entry for
	// the requested username.
	ErrUserNotFound = errors.New("user not found")

	// ErrMissingUID reports a user entry with no numeric id recorded.
	ErrMissingUID = errors.New("user has no uid")
)

// MalformedTimestampError reports a sudoNotBefore/sudoNotAfter value
// that does not match the yyyymmddHHMMSSZ format.
type MalformedTimestampError struct {
	Value string
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("malformed timestamp %q: want yyyymmddHHMMSS followed by Z", e.Value)
}
