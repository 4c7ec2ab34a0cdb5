package scanqueue

import (
	"errors"
	"fmt"
	"strings"
)

// MaxTagIDLength bounds a normalized tag identifier in hex characters.
const MaxTagIDLength = 20

// ErrInvalidTagID reports an identifier that is not a usable hex UID.
var ErrInvalidTagID = errors.New("invalid tag id")

// NormalizeTagID accepts "04:AB:CD", "04ABCD", "04 AB CD" or "04-AB-CD" and
// returns upper-case hex without separators.
func NormalizeTagID(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r == ':' || r == ' ' || r == '-':
			continue
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		default:
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidTagID, r)
		}
	}
	id := b.String()
	switch {
	case id == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidTagID)
	case len(id)%2 != 0:
		return "", fmt.Errorf("%w: odd number of hex digits", ErrInvalidTagID)
	case len(id) > MaxTagIDLength:
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidTagID, MaxTagIDLength)
	}
	return id, nil
}
