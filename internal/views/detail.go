package views

import (
	"context"
	"sync"

	"whispr/internal/api"
	"whispr/internal/media"
	"whispr/internal/models"
	"whispr/internal/mutation"
	"whispr/internal/notify"
)

// PostDetailView shows a single post with its replies.
type PostDetailView struct {
	api      PostAPI
	viewer   Viewer
	uploader Uploader
	postID   string
	maxChars int
	coord    *mutation.Coordinator
	notifier notify.Notifier

	mu       sync.Mutex
	status   Status
	post     *models.Post
	deleted  bool
	replying bool
	gen      uint64
	closed   bool
}

// NewPostDetailView returns a view of postID. uploader may be nil when
// replies never carry images.
func NewPostDetailView(backend PostAPI, viewer Viewer, uploader Uploader, postID string, notifier notify.Notifier) *PostDetailView {
	notifier = orDiscard(notifier)
	return &PostDetailView{
		api:      backend,
		viewer:   viewer,
		uploader: uploader,
		postID:   postID,
		maxChars: models.DefaultMaxPostChars,
		coord:    mutation.New(notifier),
		notifier: notifier,
	}
}

// SetMaxChars overrides the reply length limit.
func (v *PostDetailView) SetMaxChars(n int) {
	if n > 0 {
		v.maxChars = n
	}
}

// Load fetches the post. The previous copy is kept when the fetch fails,
// unless the post no longer exists.
func (v *PostDetailView) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrStale
	}
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	post, err := v.api.GetPost(ctx, v.postID)

	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		return ErrStale
	}
	v.status = Ready
	switch {
	case err == nil:
		v.post = post
	case api.IsNotFound(err):
		v.post = nil
	}
	v.mu.Unlock()

	if err != nil {
		v.notifier.Notify(notify.Failure("Error", "Failed to load post"))
		return err
	}
	return nil
}

// Status returns the load state.
func (v *PostDetailView) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Post returns a copy of the loaded post, or nil.
func (v *PostDetailView) Post() *models.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.post.Clone()
}

// Replies returns the replies in the order the backend sent them.
func (v *PostDetailView) Replies() []models.Reply {
	p := v.Post()
	if p == nil {
		return nil
	}
	return p.Replies
}

// Deleted reports whether the viewer deleted the post from this view.
func (v *PostDetailView) Deleted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deleted
}

// IsOwner reports whether the viewer wrote the post.
func (v *PostDetailView) IsOwner() bool {
	viewer := viewerOf(v.viewer)
	p := v.Post()
	return viewer != nil && p != nil && p.AuthorID() == viewer.ID
}

// Liked reports whether the viewer likes the post.
func (v *PostDetailView) Liked() bool {
	viewer := viewerOf(v.viewer)
	return viewer != nil && v.Post().LikedBy(viewer.ID)
}

// Like toggles the viewer's like and refetches the post.
func (v *PostDetailView) Like(ctx context.Context) error {
	return v.coord.ToggleLike(ctx, v.api, viewerOf(v.viewer), v.postID, v.Load)
}

// Replying reports whether a reply is being sent.
func (v *PostDetailView) Replying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.replying
}

// Reply posts a reply, uploading image first when given, then refetches
// the post. Blank content is ignored.
func (v *PostDetailView) Reply(ctx context.Context, content string, image *media.Selection) error {
	if viewerOf(v.viewer) == nil {
		return mutation.ErrNotAuthenticated
	}
	content, err := checkContent(content, v.maxChars, v.notifier)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.replying || v.closed {
		v.mu.Unlock()
		return mutation.ErrInFlight
	}
	v.replying = true
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		v.replying = false
		v.mu.Unlock()
	}()

	imageURL, err := uploadAttachment(ctx, v.uploader, image, "", v.notifier)
	if err != nil {
		return err
	}
	if err := v.api.ReplyToPost(ctx, v.postID, models.NewReply{Content: content, Image: imageURL}); err != nil {
		v.notifier.Notify(notify.Failure("Error", "Failed to post reply"))
		return err
	}
	v.notifier.Notify(notify.Success("Reply posted!", "Your reply has been added."))
	return v.Load(ctx)
}

// Delete removes the post when the viewer owns it.
func (v *PostDetailView) Delete(ctx context.Context) error {
	if err := deletePost(ctx, v.api, viewerOf(v.viewer), v.Post(), v.notifier); err != nil {
		return err
	}
	v.mu.Lock()
	v.deleted = true
	v.post = nil
	v.mu.Unlock()
	return nil
}

// Close cancels pending mutations and drops late results.
func (v *PostDetailView) Close() {
	v.coord.Close()
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}
