// Package session owns the authenticated principal. A Store is the single
// writer of the session and of its persisted entry; everything else reads
// snapshots or subscribes to changes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"whispr/internal/models"
	"whispr/internal/observability"
	"whispr/internal/storage"
)

// DefaultKey is the storage key of the persisted session.
const DefaultKey = "whispr-user"

// ErrTornDown is returned by Set after Teardown.
var ErrTornDown = errors.New("session: store torn down")

// State is the authentication state.
type State int

const (
	// Unknown means Initialize has not finished; callers must not treat
	// it as logged out.
	Unknown State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the store at one point in time.
type Snapshot struct {
	State State
	User  *models.User
}

// ProfileFetcher loads a profile by handle.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, username string) (*models.User, error)
}

// Store holds the session and mirrors it to durable storage.
type Store struct {
	storage storage.Store
	key     string
	fetcher ProfileFetcher
	logger  *observability.Logger

	initOnce sync.Once
	initErr  error
	refresh  singleflight.Group

	// writeMu serializes Set so storage and memory change in the same order.
	writeMu sync.Mutex

	mu     sync.RWMutex
	state  State
	user   *models.User
	torn   bool
	subs   map[int]chan Snapshot
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger. Defaults to observability.GlobalLogger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store in the Unknown state. Call Initialize before use.
func New(store storage.Store, fetcher ProfileFetcher, opts ...Option) *Store {
	s := &Store{
		storage: store,
		key:     DefaultKey,
		fetcher: fetcher,
		subs:    make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.OrGlobal(s.logger)
	return s
}

// Initialize loads the persisted session exactly once. A corrupt entry is
// deleted and the store becomes Unauthenticated. A storage read failure
// is returned but also leaves the store Unauthenticated.
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.load(ctx)
	})
	return s.initErr
}

func (s *Store) load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.State() != Unknown {
		return nil
	}

	raw, err := s.storage.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.transition(Unauthenticated, nil)
		return nil
	case err != nil:
		s.logger.ErrorContext(ctx, "session load failed", slog.String("error", err.Error()))
		s.transition(Unauthenticated, nil)
		return fmt.Errorf("load session: %w", err)
	}

	user, err := decodeUser(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding corrupt session entry", slog.String("error", err.Error()))
		if delErr := s.storage.Delete(ctx, s.key); delErr != nil {
			s.logger.ErrorContext(ctx, "session entry delete failed", slog.String("error", delErr.Error()))
		}
		s.transition(Unauthenticated, nil)
		return nil
	}

	s.transition(Authenticated, user)
	return nil
}

func decodeUser(raw []byte) (*models.User, error) {
	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, models.NewDecodeError("session entry is not valid JSON", err)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return &user, nil
}

// Set replaces the session. A non-nil user is validated, persisted and
// becomes Authenticated; nil deletes the entry and becomes
// Unauthenticated. If persisting fails the in-memory state still changes
// and the storage error is returned.
func (s *Store) Set(ctx context.Context, user *models.User) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	torn := s.torn
	s.mu.RUnlock()
	if torn {
		return ErrTornDown
	}

	if user == nil {
		err := s.storage.Delete(ctx, s.key)
		s.transition(Unauthenticated, nil)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	}

	if err := user.Validate(); err != nil {
		return err
	}
	user = user.Clone()

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	err = s.storage.Set(ctx, s.key, raw)
	s.transition(Authenticated, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "session persist failed", slog.String("error", err.Error()))
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Refresh re-fetches the current user's profile and replaces the session
// with it. It is a no-op when not authenticated. On failure the session is
// kept and the error returned. Concurrent calls share one fetch.
func (s *Store) Refresh(ctx context.Context) error {
	current := s.Current()
	if current == nil {
		return nil
	}
	return s.refreshAs(ctx, current, current.Username)
}

// RefreshHandle is Refresh for a user whose handle just changed. The
// fetched profile must still belong to the current user.
func (s *Store) RefreshHandle(ctx context.Context, handle string) error {
	current := s.Current()
	if current == nil {
		return nil
	}
	return s.refreshAs(ctx, current, handle)
}

func (s *Store) refreshAs(ctx context.Context, current *models.User, handle string) error {
	v, err, _ := s.refresh.Do(current.ID+"/"+handle, func() (interface{}, error) {
		return s.fetcher.GetProfile(ctx, handle)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "session refresh failed",
			slog.String("username", handle),
			slog.String("error", err.Error()),
		)
		return err
	}

	fresh := v.(*models.User)
	if fresh.ID != current.ID {
		return fmt.Errorf("session refresh: profile %q belongs to another user", handle)
	}

	// Drop the result if the session changed while the fetch was pending.
	if latest := s.Current(); latest == nil || latest.ID != current.ID {
		return nil
	}
	return s.Set(ctx, fresh.Clone())
}

// Current returns a copy of the session user, or nil.
func (s *Store) Current() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Snapshot returns the state and a copy of the user together.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.state, User: s.user.Clone()}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// Loading reports whether Initialize is still pending.
func (s *Store) Loading() bool {
	return s.State() == Unknown
}

// Subscribe returns a channel receiving the latest snapshot after each
// transition. Slow readers only see the most recent one. The cancel func
// closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.torn {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Teardown closes every subscription. Later Set calls fail with ErrTornDown.
func (s *Store) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torn {
		return
	}
	s.torn = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) transition(to State, user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = to
	s.user = user
	observability.SessionTransitions.WithLabelValues(to.String()).Inc()

	snap := Snapshot{State: to, User: user.Clone()}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
