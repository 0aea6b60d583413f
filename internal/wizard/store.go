package wizard

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Store holds live sessions in memory, bounded by size. The least recently
// used session is dropped when the bound is reached.
type Store struct {
	cache *lru.Cache[string, *Session]
}

// NewStore builds a store of at most size sessions. onDrop, if set, runs for
// every session that leaves the store. It runs in its own goroutine under the
// session's lock, so a request still holding the session finishes first.
func NewStore(size int, onDrop func(*Session)) (*Store, error) {
	cache, err := lru.NewWithEvict(size, func(id string, sess *Session) {
		log.Info().Str("session_id", id).Msg("wizard session evicted")
		if onDrop == nil {
			return
		}
		go func() {
			sess.Lock()
			defer sess.Unlock()
			onDrop(sess)
		}()
	})
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Get returns the session for id if it is still live.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return s.cache.Get(id)
}

// Create starts a fresh session at intro.
func (s *Store) Create() *Session {
	sess := NewSession()
	s.cache.Add(sess.ID, sess)
	return sess
}

// Resolve returns the live session for id, or a new one when id is unknown.
// created reports whether a new session was started.
func (s *Store) Resolve(id string) (sess *Session, created bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

func (s *Store) Remove(id string) { s.cache.Remove(id) }

func (s *Store) Len() int { return s.cache.Len() }
