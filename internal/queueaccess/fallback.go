package queueaccess

import (
	"errors"
	"fmt"

	"docbatch/internal/api"
	"docbatch/internal/ipc"
	"docbatch/internal/queue"
)

// Session bundles queue and content access with whatever must be closed
// afterwards.
type Session struct {
	Access  Access
	Content ContentAccess
	// Remote is true when calls go to a running daemon.
	Remote bool

	closer func() error
}

// Close releases the daemon connection or the store.
func (s Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// OpenWithFallback prefers the daemon. When dial is nil or fails, the store
// is opened in-process; SQLite WAL mode lets both coexist.
func OpenWithFallback(dial func() (*ipc.Client, error), openStore func() (*queue.Store, error)) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access:  NewIPCAccess(client),
				Content: remoteContent{client: client},
				Remote:  true,
				closer:  client.Close,
			}, nil
		}
	}
	if openStore == nil {
		return Session{}, errors.New("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access:  NewStoreAccess(store),
		Content: api.NewContentService(store),
		closer:  store.Close,
	}, nil
}
