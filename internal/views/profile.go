package views

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"whispr/internal/api"
	"whispr/internal/models"
	"whispr/internal/mutation"
	"whispr/internal/notify"
	"whispr/internal/observability"
)

// ProfileView shows one user and, for signed-in viewers, their posts.
type ProfileView struct {
	api      API
	viewer   Viewer
	handle   string
	coord    *mutation.Coordinator
	notifier notify.Notifier
	logger   *observability.Logger

	mu      sync.Mutex
	status  Status
	profile *models.User
	posts   []models.Post
	gen     uint64
	closed  bool
}

// NewProfileView returns a view of the user with handle.
func NewProfileView(backend API, viewer Viewer, handle string, notifier notify.Notifier) *ProfileView {
	notifier = orDiscard(notifier)
	return &ProfileView{
		api:      backend,
		viewer:   viewer,
		handle:   handle,
		coord:    mutation.New(notifier),
		notifier: notifier,
		logger:   observability.GlobalLogger,
	}
}

// Load fetches the profile and, when signed in, the user's posts in
// parallel. A failed post fetch leaves the list empty without a toast.
func (v *ProfileView) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrStale
	}
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	var (
		profile *models.User
		posts   []models.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = v.api.GetProfile(gctx, v.handle)
		return err
	})
	if viewerOf(v.viewer) != nil {
		g.Go(func() error {
			var err error
			posts, err = v.fetchPosts(gctx)
			if err != nil {
				v.logger.WarnContext(ctx, "profile posts unavailable",
					slog.String("handle", v.handle),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	err := g.Wait()

	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		return ErrStale
	}
	v.status = Ready
	if err == nil {
		v.profile = profile
		v.posts = posts
	} else if api.IsNotFound(err) {
		v.profile = nil
		v.posts = nil
	}
	v.mu.Unlock()

	if err != nil {
		v.notifier.Notify(notify.Failure("Error", "Failed to load profile"))
		return err
	}
	return nil
}

func (v *ProfileView) fetchPosts(ctx context.Context) ([]models.Post, error) {
	all, err := v.api.GetAllPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Post, 0, len(all))
	for _, p := range all {
		if p.AuthorHandle() == v.handle {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v *ProfileView) reloadPosts(ctx context.Context) error {
	posts, err := v.fetchPosts(ctx)
	if err != nil {
		v.notifier.Notify(loadPostsFailed)
		return err
	}
	v.mu.Lock()
	if !v.closed {
		v.posts = posts
	}
	v.mu.Unlock()
	return nil
}

// Handle returns the handle this view was opened with.
func (v *ProfileView) Handle() string { return v.handle }

// Status returns the load state.
func (v *ProfileView) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Found reports whether the profile was loaded.
func (v *ProfileView) Found() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile != nil
}

// Profile returns a copy of the loaded user, or nil.
func (v *ProfileView) Profile() *models.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile.Clone()
}

// Posts returns a copy of the user's posts.
func (v *ProfileView) Posts() []models.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Post, len(v.posts))
	copy(out, v.posts)
	return out
}

// IsOwn reports whether the viewer is looking at their own profile.
func (v *ProfileView) IsOwn() bool {
	viewer := viewerOf(v.viewer)
	return viewer != nil && viewer.Username == v.handle
}

// IsFollowing reports whether the viewer follows the profile.
func (v *ProfileView) IsFollowing() bool {
	viewer := viewerOf(v.viewer)
	if viewer == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile.FollowedBy(viewer.ID)
}

// FollowPending reports whether a follow toggle is in flight.
func (v *ProfileView) FollowPending() bool {
	p := v.Profile()
	return p != nil && v.coord.InFlight(mutation.Key{Kind: mutation.Follow, EntityID: p.ID})
}

// ToggleFollow follows or unfollows the profile and patches its follower
// set once the backend confirms.
func (v *ProfileView) ToggleFollow(ctx context.Context) (bool, error) {
	viewer := viewerOf(v.viewer)
	target := v.Profile()
	return v.coord.ToggleFollow(ctx, v.api, mutation.FollowRequest{
		Viewer: viewer,
		Target: target,
		Apply: func(now bool) {
			v.mu.Lock()
			defer v.mu.Unlock()
			if v.profile != nil && v.profile.ID == target.ID {
				v.profile.SetFollower(viewer.ID, now)
			}
		},
	})
}

// Like toggles the viewer's like on one of the user's posts and reloads
// the posts.
func (v *ProfileView) Like(ctx context.Context, postID string) error {
	return v.coord.ToggleLike(ctx, v.api, viewerOf(v.viewer), postID, v.reloadPosts)
}

// Delete removes one of the viewer's own posts.
func (v *ProfileView) Delete(ctx context.Context, postID string) error {
	v.mu.Lock()
	i := models.FindPost(v.posts, postID)
	var post *models.Post
	if i >= 0 {
		post = v.posts[i].Clone()
	}
	v.mu.Unlock()

	if err := deletePost(ctx, v.api, viewerOf(v.viewer), post, v.notifier); err != nil {
		return err
	}
	v.mu.Lock()
	if i := models.FindPost(v.posts, postID); i >= 0 {
		v.posts = append(v.posts[:i:i], v.posts[i+1:]...)
	}
	v.mu.Unlock()
	return nil
}

// Close cancels pending mutations and drops late results.
func (v *ProfileView) Close() {
	v.coord.Close()
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}
