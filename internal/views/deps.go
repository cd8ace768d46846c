package views

import (
	"context"
	"errors"

	"whispr/internal/api"
	"whispr/internal/media"
	"whispr/internal/models"
	"whispr/internal/mutation"
	"whispr/internal/notify"
)

// PostAPI is the post half of the backend client.
type PostAPI interface {
	GetFeed(ctx context.Context) ([]models.Post, error)
	GetAllPosts(ctx context.Context) ([]models.Post, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	CreatePost(ctx context.Context, post models.NewPost) (*models.Post, error)
	DeletePost(ctx context.Context, postID string) error
	LikePost(ctx context.Context, postID string) error
	ReplyToPost(ctx context.Context, postID string, reply models.NewReply) error
}

// UserAPI is the profile half of the backend client.
type UserAPI interface {
	GetProfile(ctx context.Context, username string) (*models.User, error)
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) error
}

// API is everything views call on the backend. *api.Client satisfies it.
type API interface {
	PostAPI
	UserAPI
}

var _ API = (*api.Client)(nil)

// Viewer exposes the current session read-only. *session.Store satisfies it.
type Viewer interface {
	Current() *models.User
}

// Uploader sends an image to the CDN. *media.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, sel *media.Selection, folder string) (string, error)
}

// ErrNoUploader is returned when an image is attached but uploads are not
// configured.
var ErrNoUploader = errors.New("views: image uploads are not configured")

func viewerOf(v Viewer) *models.User {
	if v == nil {
		return nil
	}
	return v.Current()
}

// deletePost removes an owned post on the backend and reports the outcome.
func deletePost(ctx context.Context, backend PostAPI, viewer *models.User, post *models.Post, notifier notify.Notifier) error {
	if viewer == nil {
		return mutation.ErrNotAuthenticated
	}
	if post == nil {
		return mutation.ErrNoTarget
	}
	if post.AuthorID() != viewer.ID {
		return mutation.ErrNotOwner
	}
	if err := backend.DeletePost(ctx, post.ID); err != nil {
		notifier.Notify(notify.Failure("Error", "Failed to delete post"))
		return err
	}
	notifier.Notify(notify.Success("Post deleted", "Your post has been removed."))
	return nil
}

func orDiscard(n notify.Notifier) notify.Notifier {
	if n == nil {
		return notify.Discard
	}
	return n
}
