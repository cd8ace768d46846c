package views

import (
	"context"
	"strings"
	"sync"

	"whispr/internal/models"
	"whispr/internal/mutation"
	"whispr/internal/notify"
)

// SearchView finds users by handle among the authors of all posts.
type SearchView struct {
	api      API
	viewer   Viewer
	coord    *mutation.Coordinator
	notifier notify.Notifier

	mu      sync.Mutex
	query   string
	results []models.User
	loading bool
	gen     uint64
}

// NewSearchView returns an empty search.
func NewSearchView(backend API, viewer Viewer, notifier notify.Notifier) *SearchView {
	notifier = orDiscard(notifier)
	return &SearchView{api: backend, viewer: viewer, coord: mutation.New(notifier), notifier: notifier}
}

// Search replaces the results with authors whose handle contains query,
// ignoring case. A blank query clears the results without a fetch.
func (v *SearchView) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.query = query
	if query == "" {
		v.results = nil
		v.loading = false
		v.mu.Unlock()
		return nil
	}
	v.loading = true
	v.mu.Unlock()

	posts, err := v.api.GetAllPosts(ctx)

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		return ErrStale
	}
	v.loading = false
	if err == nil {
		v.results = matchAuthors(posts, query)
	}
	v.mu.Unlock()

	if err != nil {
		v.notifier.Notify(notify.Failure("Error", "Failed to search users"))
		return err
	}
	return nil
}

// matchAuthors returns distinct authors in first-seen order. A later
// snapshot of the same author replaces the earlier one in place.
func matchAuthors(posts []models.Post, query string) []models.User {
	needle := strings.ToLower(query)
	index := make(map[string]int)
	var out []models.User
	for i := range posts {
		author := posts[i].PostedBy
		if author == nil || !strings.Contains(strings.ToLower(author.Username), needle) {
			continue
		}
		if at, seen := index[author.ID]; seen {
			out[at] = *author.Clone()
			continue
		}
		index[author.ID] = len(out)
		out = append(out, *author.Clone())
	}
	return out
}

// Query returns the last submitted query.
func (v *SearchView) Query() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Results returns a copy of the matched users.
func (v *SearchView) Results() []models.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.User, len(v.results))
	for i := range v.results {
		out[i] = *v.results[i].Clone()
	}
	return out
}

// Loading reports whether a search is in progress.
func (v *SearchView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// IsFollowing reports whether the viewer follows user.
func (v *SearchView) IsFollowing(user models.User) bool {
	viewer := viewerOf(v.viewer)
	return viewer != nil && user.FollowedBy(viewer.ID)
}

// IsOwn reports whether user is the viewer.
func (v *SearchView) IsOwn(user models.User) bool {
	viewer := viewerOf(v.viewer)
	return viewer != nil && viewer.ID == user.ID
}

// Pending reports whether a follow toggle for userID is in flight.
func (v *SearchView) Pending(userID string) bool {
	return v.coord.InFlight(mutation.Key{Kind: mutation.Follow, EntityID: userID})
}

// ToggleFollow follows or unfollows a user from the results, then reruns
// the search so follower sets come from the backend.
func (v *SearchView) ToggleFollow(ctx context.Context, userID string) error {
	var target *models.User
	v.mu.Lock()
	for i := range v.results {
		if v.results[i].ID == userID {
			target = v.results[i].Clone()
			break
		}
	}
	v.mu.Unlock()

	_, err := v.coord.ToggleFollow(ctx, v.api, mutation.FollowRequest{
		Viewer: viewerOf(v.viewer),
		Target: target,
		Apply:  func(bool) {},
		Toast:  searchFollowToast,
	})
	if err != nil {
		return err
	}
	if v.coord.Closed() {
		return nil
	}
	return v.Search(ctx, v.Query())
}

func searchFollowToast(nowFollowing bool, _ *models.User) notify.Toast {
	if nowFollowing {
		return notify.Success("Following", "You are now following this user")
	}
	return notify.Success("Unfollowed", "User unfollowed successfully")
}

// Close cancels pending follow toggles.
func (v *SearchView) Close() {
	v.coord.Close()
}
