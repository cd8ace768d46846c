package views

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"whispr/internal/api"
	"whispr/internal/media"
	"whispr/internal/models"
	"whispr/internal/mutation"
	"whispr/internal/notify"
)

// Composer creates posts.
type Composer struct {
	api      PostAPI
	uploader Uploader
	notifier notify.Notifier
	maxChars int
	maxBytes int64

	mu      sync.Mutex
	posting bool
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithMaxChars sets the content length limit.
func WithMaxChars(n int) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithMaxImageBytes sets the attachment size limit.
func WithMaxImageBytes(n int64) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// NewComposer returns a composer. uploader may be nil when posts never
// carry images.
func NewComposer(backend PostAPI, uploader Uploader, notifier notify.Notifier, opts ...ComposerOption) *Composer {
	c := &Composer{
		api:      backend,
		uploader: uploader,
		notifier: orDiscard(notifier),
		maxChars: models.DefaultMaxPostChars,
		maxBytes: media.DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Posting reports whether a submit is running.
func (c *Composer) Posting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posting
}

// SelectImage checks a picked file before it is attached.
func (c *Composer) SelectImage(name string, data []byte) (*media.Selection, error) {
	sel, err := media.Validate(name, data, c.maxBytes)
	if err != nil {
		if se, ok := media.AsSelection(err); ok && se.Problem == media.TooLarge {
			c.notifier.Notify(notify.Failure("File too large",
				fmt.Sprintf("Please select an image smaller than %s", sizeLabel(c.maxBytes))))
		} else {
			c.notifier.Notify(notify.Failure("Invalid file type", "Please select an image file"))
		}
		return nil, err
	}
	return sel, nil
}

// Submit uploads image when given, then creates the post. Content is
// trimmed; blank content is ignored without a request.
func (c *Composer) Submit(ctx context.Context, content string, image *media.Selection) (*models.Post, error) {
	content, err := checkContent(content, c.maxChars, c.notifier)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.posting {
		c.mu.Unlock()
		return nil, mutation.ErrInFlight
	}
	c.posting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.posting = false
		c.mu.Unlock()
	}()

	imageURL, err := uploadAttachment(ctx, c.uploader, image, "", c.notifier)
	if err != nil {
		return nil, err
	}
	post, err := c.api.CreatePost(ctx, models.NewPost{Content: content, Image: imageURL})
	if err != nil {
		msg := api.Message(err)
		if msg == "" {
			msg = "Failed to create post"
		}
		c.notifier.Notify(notify.Failure("Error", msg))
		return nil, err
	}
	c.notifier.Notify(notify.Success("Post created!", "Your whisper has been shared."))
	return post, nil
}

// checkContent trims content and enforces the length limit in characters.
func checkContent(content string, maxChars int, notifier notify.Notifier) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("content is required")
	}
	if maxChars > 0 && utf8.RuneCountInString(content) > maxChars {
		msg := fmt.Sprintf("Content must be %d characters or less", maxChars)
		notifier.Notify(notify.Failure("Error", msg))
		return "", models.NewValidationError(msg)
	}
	return content, nil
}

// uploadAttachment returns "" when there is nothing to upload.
func uploadAttachment(ctx context.Context, uploader Uploader, image *media.Selection, folder string, notifier notify.Notifier) (string, error) {
	if image == nil {
		return "", nil
	}
	if uploader == nil {
		notifier.Notify(notify.Failure("Error", "Image uploads are not configured"))
		return "", ErrNoUploader
	}
	url, err := uploader.Upload(ctx, image, folder)
	if err != nil {
		notifier.Notify(notify.Failure("Error", "Image upload failed"))
		return "", err
	}
	return url, nil
}

func sizeLabel(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
