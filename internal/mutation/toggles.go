package mutation

import (
	"context"

	"whispr/internal/models"
	"whispr/internal/notify"
)

// LikeAPI toggles a like on the backend.
type LikeAPI interface {
	LikePost(ctx context.Context, postID string) error
}

// FollowAPI follows and unfollows on the backend.
type FollowAPI interface {
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
}

// ToggleLike asks the backend to toggle viewer's like on postID, then
// calls refetch so the caller recomputes liked state from the server copy.
// Nothing is flipped locally. refetch runs after the guard is released and
// is skipped once the coordinator is closed.
func (c *Coordinator) ToggleLike(ctx context.Context, api LikeAPI, viewer *models.User, postID string, refetch func(context.Context) error) error {
	if viewer == nil {
		return c.reject(Like, ErrNotAuthenticated)
	}

	err := c.Mutate(ctx, Key{Kind: Like, EntityID: postID}, func(ctx context.Context) error {
		return api.LikePost(ctx, postID)
	}, nil)
	if err != nil {
		if !IsSkip(err) {
			c.notifier.Notify(notify.Failure("Error", "Failed to like post"))
		}
		return err
	}

	if refetch == nil || c.Closed() {
		return nil
	}
	return refetch(ctx)
}

// FollowRequest describes one follow toggle.
type FollowRequest struct {
	Viewer *models.User
	// Target is the cached profile whose follower set decides the
	// direction.
	Target *models.User
	// Apply patches the cached target after success. When nil, Target's
	// follower set is patched in place.
	Apply func(nowFollowing bool)
	// Toast overrides the success notification.
	Toast func(nowFollowing bool, target *models.User) notify.Toast
}

// ToggleFollow follows or unfollows Target depending on whether Viewer is
// already in its follower set, and patches the cached set only after the
// backend confirms. It returns the new following state.
func (c *Coordinator) ToggleFollow(ctx context.Context, api FollowAPI, req FollowRequest) (bool, error) {
	if req.Viewer == nil {
		return false, c.reject(Follow, ErrNotAuthenticated)
	}
	if req.Target == nil {
		return false, c.reject(Follow, ErrNoTarget)
	}
	if req.Viewer.ID == req.Target.ID {
		return false, c.reject(Follow, ErrSelf)
	}

	viewerID := req.Viewer.ID
	target := req.Target

	apply := req.Apply
	if apply == nil {
		apply = func(now bool) { target.SetFollower(viewerID, now) }
	}

	// The direction is read once the guard is held, under the same lock
	// the default apply writes with, so callers may share one Target.
	var following bool
	err := c.Mutate(ctx, Key{Kind: Follow, EntityID: target.ID}, func(ctx context.Context) error {
		following = c.followedBy(target, viewerID)
		if following {
			return api.Unfollow(ctx, target.ID)
		}
		return api.Follow(ctx, target.ID)
	}, func() { apply(!following) })
	if err != nil {
		if !IsSkip(err) {
			c.notifier.Notify(notify.Failure("Error", "Failed to update follow status"))
		}
		return c.followedBy(target, viewerID), err
	}

	toast := req.Toast
	if toast == nil {
		toast = FollowToast
	}
	c.notifier.Notify(toast(!following, target))
	return !following, nil
}

// FollowToast is the default success notification of a follow toggle.
func FollowToast(nowFollowing bool, target *models.User) notify.Toast {
	if nowFollowing {
		return notify.Success("Following", "You are now following @"+target.Username)
	}
	return notify.Success("Unfollowed", "You unfollowed @"+target.Username)
}

func (c *Coordinator) followedBy(target *models.User, viewerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return target.FollowedBy(viewerID)
}
