package views

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"whispr/internal/api"
	"whispr/internal/media"
	"whispr/internal/models"
	"whispr/internal/mutation"
	"whispr/internal/notify"
	"whispr/internal/observability"
)

// DefaultProfileFolder is the CDN folder avatars are uploaded into.
const DefaultProfileFolder = "whispr-profiles"

// SessionRefresher reads the session and reloads it after a profile change.
// *session.Store satisfies it.
type SessionRefresher interface {
	Viewer
	RefreshHandle(ctx context.Context, handle string) error
}

// ProfileUpdater is the backend call behind the editor.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) error
}

// ProfileForm is the editable part of a profile.
type ProfileForm struct {
	Name       string
	Username   string
	Email      string
	Bio        string
	ProfilePic string
}

// ProfileEditor edits the viewer's own profile.
type ProfileEditor struct {
	api      ProfileUpdater
	session  SessionRefresher
	uploader Uploader
	notifier notify.Notifier
	folder   string
	maxBytes int64
	logger   *observability.Logger

	mu     sync.Mutex
	saving bool
}

// NewProfileEditor returns an editor. uploader may be nil when avatars are
// only set by URL.
func NewProfileEditor(backend ProfileUpdater, session SessionRefresher, uploader Uploader, notifier notify.Notifier) *ProfileEditor {
	return &ProfileEditor{
		api:      backend,
		session:  session,
		uploader: uploader,
		notifier: orDiscard(notifier),
		folder:   DefaultProfileFolder,
		maxBytes: media.DefaultMaxBytes,
		logger:   observability.GlobalLogger,
	}
}

// SetFolder overrides the avatar folder.
func (e *ProfileEditor) SetFolder(folder string) { e.folder = folder }

// SetMaxImageBytes overrides the avatar size limit.
func (e *ProfileEditor) SetMaxImageBytes(n int64) {
	if n > 0 {
		e.maxBytes = n
	}
}

// Form returns the current profile as a form.
func (e *ProfileEditor) Form() (ProfileForm, error) {
	u := viewerOf(e.session)
	if u == nil {
		return ProfileForm{}, mutation.ErrNotAuthenticated
	}
	return ProfileForm{
		Name:       u.Name,
		Username:   u.Username,
		Email:      u.Email,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
	}, nil
}

// UploadAvatar checks and uploads a new profile picture and returns its URL.
func (e *ProfileEditor) UploadAvatar(ctx context.Context, name string, data []byte) (string, error) {
	sel, err := media.Validate(name, data, e.maxBytes)
	if err != nil {
		if se, ok := media.AsSelection(err); ok && se.Problem == media.TooLarge {
			e.notifier.Notify(notify.Failure("Error",
				fmt.Sprintf("Image size must be less than %s", sizeLabel(e.maxBytes))))
		} else {
			e.notifier.Notify(notify.Failure("Error", "Please select a valid image file"))
		}
		return "", err
	}
	if e.uploader == nil {
		e.notifier.Notify(notify.Failure("Error", "Failed to upload image. Please try again."))
		return "", ErrNoUploader
	}

	url, err := e.uploader.Upload(ctx, sel, e.folder)
	if err != nil {
		e.notifier.Notify(notify.Failure("Error", "Failed to upload image. Please try again."))
		return "", err
	}
	e.notifier.Notify(notify.Success("Success", "Profile picture uploaded successfully"))
	return url, nil
}

// Save sends the form, reloads the session under the new handle and
// returns that handle.
func (e *ProfileEditor) Save(ctx context.Context, form ProfileForm) (string, error) {
	if viewerOf(e.session) == nil {
		return "", mutation.ErrNotAuthenticated
	}
	name := strings.TrimSpace(form.Name)
	username := strings.TrimSpace(form.Username)
	email := strings.TrimSpace(form.Email)
	bio := strings.TrimSpace(form.Bio)
	pic := form.ProfilePic
	if name == "" || username == "" || email == "" {
		const msg = "Name, username, and email are required"
		e.notifier.Notify(notify.Failure("Error", msg))
		return "", models.NewValidationError(msg)
	}

	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return "", mutation.ErrInFlight
	}
	e.saving = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.saving = false
		e.mu.Unlock()
	}()

	update := models.ProfileUpdate{
		Name:       &name,
		Username:   &username,
		Email:      &email,
		Bio:        &bio,
		ProfilePic: &pic,
	}
	if err := e.api.UpdateProfile(ctx, update); err != nil {
		msg := api.Message(err)
		if msg == "" {
			msg = "Failed to update profile. Please try again."
		}
		e.notifier.Notify(notify.Failure("Error", msg))
		return "", err
	}

	if err := e.session.RefreshHandle(ctx, username); err != nil {
		e.logger.WarnContext(ctx, "session refresh after profile update failed",
			slog.String("handle", username),
			slog.String("error", err.Error()),
		)
	}
	e.notifier.Notify(notify.Success("Success", "Profile updated successfully"))
	return username, nil
}
