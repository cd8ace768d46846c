package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whispr/internal/models"
	"whispr/internal/observability"
	"whispr/internal/storage"
)

// fetcherStub is a stub for ProfileFetcher.
type fetcherStub struct {
	getProfileFn func(context.Context, string) (*models.User, error)
}

func (s *fetcherStub) GetProfile(ctx context.Context, username string) (*models.User, error) {
	return s.getProfileFn(ctx, username)
}

func noopFetcher() *fetcherStub {
	return &fetcherStub{
		getProfileFn: func(_ context.Context, _ string) (*models.User, error) {
			return nil, errors.New("unexpected fetch")
		},
	}
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*storage.MemoryStore
	getErr error
	setErr error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, v []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, key, v)
}

func sampleUser() *models.User {
	return &models.User{
		ID:         "u1",
		Name:       "Ada Lovelace",
		Username:   "ada",
		Email:      "ada@example.com",
		ProfilePic: "https://cdn.example.com/ada.png",
		Followers:  []string{"u2", "u3"},
		Following:  []string{"u2"},
		Bio:        "analyst",
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:  time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func newStore(t *testing.T, st storage.Store, f ProfileFetcher) *Store {
	t.Helper()
	return New(st, f, WithLogger(observability.NewDiscardLogger()))
}

func TestInitialize_EmptyStorage(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), noopFetcher())
	assert.True(t, s.Loading())
	assert.Equal(t, Unknown, s.State())

	require.NoError(t, s.Initialize(context.Background()))
	assert.False(t, s.Loading())
	assert.Equal(t, Unauthenticated, s.State())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.Current())
}

func TestPersistThenReload_FieldwiseEqual(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()

	s1 := newStore(t, st, noopFetcher())
	require.NoError(t, s1.Initialize(ctx))
	require.NoError(t, s1.Set(ctx, sampleUser()))
	assert.True(t, s1.IsAuthenticated())

	s2 := newStore(t, st, noopFetcher())
	require.NoError(t, s2.Initialize(ctx))
	assert.Equal(t, Authenticated, s2.State())
	assert.Equal(t, sampleUser(), s2.Current())
}

func TestInitialize_CorruptEntry(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{oops"},
		{name: "wrong shape", raw: `["a","b"]`},
		{name: "missing required fields", raw: `{"name":"Ada"}`},
		{name: "null", raw: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := storage.NewMemoryStore()
			require.NoError(t, st.Set(ctx, DefaultKey, []byte(tt.raw)))

			s := newStore(t, st, noopFetcher())
			require.NoError(t, s.Initialize(ctx))
			assert.Equal(t, Unauthenticated, s.State())

			_, err := st.Get(ctx, DefaultKey)
			assert.ErrorIs(t, err, storage.ErrNotFound)

			// Reloading again is still unauthenticated.
			s2 := newStore(t, st, noopFetcher())
			require.NoError(t, s2.Initialize(ctx))
			assert.Equal(t, Unauthenticated, s2.State())
		})
	}
}

func TestInitialize_RunsOnce(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	s := newStore(t, st, noopFetcher())
	require.NoError(t, s.Initialize(ctx))

	raw, err := json.Marshal(sampleUser())
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, DefaultKey, raw))

	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, Unauthenticated, s.State())
}

func TestInitialize_StorageFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	st := &failingStore{MemoryStore: storage.NewMemoryStore(), getErr: boom}

	s := newStore(t, st, noopFetcher())
	err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Unauthenticated, s.State())
}

func TestSet_Nil_DeletesEntry(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	s := newStore(t, st, noopFetcher())
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Set(ctx, sampleUser()))

	require.NoError(t, s.Set(ctx, nil))
	assert.Equal(t, Unauthenticated, s.State())
	_, err := st.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSet_RejectsPartialUser(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	s := newStore(t, st, noopFetcher())
	require.NoError(t, s.Initialize(ctx))

	err := s.Set(ctx, &models.User{ID: "u1"})
	require.Error(t, err)
	assert.Equal(t, Unauthenticated, s.State())
	_, err = st.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSet_PersistFailureStillTransitions(t *testing.T) {
	boom := errors.New("read-only")
	st := &failingStore{MemoryStore: storage.NewMemoryStore(), setErr: boom}
	s := newStore(t, st, noopFetcher())
	require.NoError(t, s.Initialize(context.Background()))

	err := s.Set(context.Background(), sampleUser())
	assert.ErrorIs(t, err, boom)
	assert.True(t, s.IsAuthenticated())
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryStore(), noopFetcher())
	require.NoError(t, s.Set(ctx, sampleUser()))

	u := s.Current()
	u.Followers[0] = "mutated"
	u.Name = "mutated"

	assert.Equal(t, sampleUser(), s.Current())
}

func TestSet_BeforeInitializeWins(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(ctx, DefaultKey, []byte("{corrupt")))

	s := newStore(t, st, noopFetcher())
	require.NoError(t, s.Set(ctx, sampleUser()))
	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.IsAuthenticated())
}

func TestRefresh_NoopWhenUnauthenticated(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), noopFetcher())
	require.NoError(t, s.Initialize(context.Background()))
	assert.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, Unauthenticated, s.State())
}

func TestRefresh_ReplacesSession(t *testing.T) {
	ctx := context.Background()
	fresh := sampleUser()
	fresh.Bio = "updated"
	fresh.Followers = append(fresh.Followers, "u9")

	var gotHandle string
	f := &fetcherStub{getProfileFn: func(_ context.Context, username string) (*models.User, error) {
		gotHandle = username
		return fresh.Clone(), nil
	}}

	st := storage.NewMemoryStore()
	s := newStore(t, st, f)
	require.NoError(t, s.Set(ctx, sampleUser()))

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, "ada", gotHandle)
	assert.Equal(t, fresh, s.Current())

	raw, err := st.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"bio":"updated"`)
}

func TestRefresh_FailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := &fetcherStub{getProfileFn: func(context.Context, string) (*models.User, error) {
		return nil, errors.New("network down")
	}}
	s := newStore(t, storage.NewMemoryStore(), f)
	require.NoError(t, s.Set(ctx, sampleUser()))

	assert.Error(t, s.Refresh(ctx))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, sampleUser(), s.Current())
}

func TestRefresh_DroppedWhenLoggedOutMeanwhile(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	f := &fetcherStub{getProfileFn: func(context.Context, string) (*models.User, error) {
		close(started)
		<-release
		return sampleUser(), nil
	}}
	s := newStore(t, storage.NewMemoryStore(), f)
	require.NoError(t, s.Set(ctx, sampleUser()))

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	<-started
	require.NoError(t, s.Set(ctx, nil))
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, Unauthenticated, s.State())
}

func TestRefresh_ConcurrentCallsShareFetch(t *testing.T) {
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})
	f := &fetcherStub{getProfileFn: func(context.Context, string) (*models.User, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return sampleUser(), nil
	}}
	s := newStore(t, storage.NewMemoryStore(), f)
	require.NoError(t, s.Set(ctx, sampleUser()))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Refresh(ctx)
		}()
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestRefreshHandle_RejectsOtherUser(t *testing.T) {
	ctx := context.Background()
	other := sampleUser()
	other.ID = "someone-else"
	f := &fetcherStub{getProfileFn: func(context.Context, string) (*models.User, error) { return other, nil }}
	s := newStore(t, storage.NewMemoryStore(), f)
	require.NoError(t, s.Set(ctx, sampleUser()))

	assert.Error(t, s.RefreshHandle(ctx, "ada2"))
	assert.Equal(t, "u1", s.Current().ID)
}

func TestRefreshHandle_UsesNewHandle(t *testing.T) {
	ctx := context.Background()
	renamed := sampleUser()
	renamed.Username = "countess"
	f := &fetcherStub{getProfileFn: func(_ context.Context, h string) (*models.User, error) {
		if h != "countess" {
			return nil, errors.New("not found")
		}
		return renamed.Clone(), nil
	}}
	s := newStore(t, storage.NewMemoryStore(), f)
	require.NoError(t, s.Set(ctx, sampleUser()))

	require.NoError(t, s.RefreshHandle(ctx, "countess"))
	assert.Equal(t, "countess", s.Current().Username)
}

func TestSubscribe_ReceivesLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryStore(), noopFetcher())
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Set(ctx, sampleUser()))

	snap := <-ch
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "ada", snap.User.Username)

	require.NoError(t, s.Set(ctx, nil))
	snap = <-ch
	assert.Equal(t, Unauthenticated, snap.State)
	assert.Nil(t, snap.User)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), noopFetcher())
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestTeardown(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryStore(), noopFetcher())
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Teardown()
	s.Teardown()

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, s.Set(ctx, sampleUser()), ErrTornDown)

	late, _ := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "authenticated", Authenticated.String())
}
