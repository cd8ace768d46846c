package views

import (
	"context"

	"whispr/internal/models"
	"whispr/internal/mutation"
	"whispr/internal/notify"
)

var loadPostsFailed = notify.Failure("Error", "Failed to load posts")

// PostListView is the home feed or the explore list.
type PostListView struct {
	*ListView[models.Post]

	api      PostAPI
	viewer   Viewer
	coord    *mutation.Coordinator
	notifier notify.Notifier
}

func postID(p models.Post) string { return p.ID }

func newPostListView(backend PostAPI, viewer Viewer, notifier notify.Notifier, fetch func(context.Context) ([]models.Post, error)) *PostListView {
	notifier = orDiscard(notifier)
	return &PostListView{
		ListView: NewListView(fetch, postID, notifier, loadPostsFailed),
		api:      backend,
		viewer:   viewer,
		coord:    mutation.New(notifier),
		notifier: notifier,
	}
}

// NewFeedView lists posts by the viewer and the users they follow.
func NewFeedView(backend PostAPI, viewer Viewer, notifier notify.Notifier) *PostListView {
	return newPostListView(backend, viewer, notifier, backend.GetFeed)
}

// NewExploreView lists every post.
func NewExploreView(backend PostAPI, viewer Viewer, notifier notify.Notifier) *PostListView {
	return newPostListView(backend, viewer, notifier, backend.GetAllPosts)
}

// Like toggles the viewer's like on postID and reloads the list.
func (v *PostListView) Like(ctx context.Context, postID string) error {
	return v.coord.ToggleLike(ctx, v.api, viewerOf(v.viewer), postID, v.Load)
}

// LikedByViewer reports whether the viewer likes post.
func (v *PostListView) LikedByViewer(post models.Post) bool {
	viewer := viewerOf(v.viewer)
	if viewer == nil {
		return false
	}
	return post.LikedBy(viewer.ID)
}

// Delete removes an owned post on the backend and from the list.
func (v *PostListView) Delete(ctx context.Context, postID string) error {
	post, ok := v.Find(postID)
	if !ok {
		return mutation.ErrNoTarget
	}
	if err := deletePost(ctx, v.api, viewerOf(v.viewer), &post, v.notifier); err != nil {
		return err
	}
	v.Remove(postID)
	return nil
}

// Coordinator exposes the view's mutation guards.
func (v *PostListView) Coordinator() *mutation.Coordinator { return v.coord }

// Close cancels pending mutations and drops late results.
func (v *PostListView) Close() {
	v.coord.Close()
	v.ListView.Close()
}
