package assignmentaccess

import (
	"fmt"

	"cardsync/internal/api"
	"cardsync/internal/assignments"
)

// Session represents an assignment access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries daemon-backed access first, then falls back to direct
// store access. dial should only succeed when the daemon answered.
func OpenWithFallback(
	dial func() (*api.Client, error),
	openStore func() (assignments.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{Access: NewAPIAccess(client)}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open assignment store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open assignment store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
