package session

import (
	"context"
	"log/slog"
	"strings"

	"whispr/internal/models"
	"whispr/internal/notify"
)

// AuthAPI is the subset of the backend client used by login flows.
type AuthAPI interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, error)
	Logout(ctx context.Context) error
}

// CredentialStore holds the cookie credential.
type CredentialStore interface {
	Clear(ctx context.Context) error
}

// Auth runs the login, signup and logout flows against a Store.
type Auth struct {
	api      AuthAPI
	session  *Store
	creds    CredentialStore
	notifier notify.Notifier
}

// NewAuth wires the flows. creds and notifier may be nil.
func NewAuth(api AuthAPI, session *Store, creds CredentialStore, notifier notify.Notifier) *Auth {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Auth{api: api, session: session, creds: creds, notifier: notifier}
}

// Login validates the form, authenticates and stores the session.
func (a *Auth) Login(ctx context.Context, email, password string) (*models.User, error) {
	req := models.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := models.ValidateInput(req); err != nil {
		a.notifier.Notify(notify.Failure("Error", "Email and password are required"))
		return nil, err
	}

	user, err := a.api.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.session.Set(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// Signup validates the form, creates the account and stores the session.
func (a *Auth) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := models.ValidateInput(req); err != nil {
		a.notifier.Notify(notify.Failure("Error", err.Error()))
		return nil, err
	}

	user, err := a.api.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.session.Set(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// Logout ends the session. Local state is cleared even when the backend
// call fails, and that failure is returned.
func (a *Auth) Logout(ctx context.Context) error {
	callErr := a.api.Logout(ctx)

	if a.creds != nil {
		if err := a.creds.Clear(ctx); err != nil {
			a.session.logger.WarnContext(ctx, "credential clear failed", slog.String("error", err.Error()))
		}
	}
	setErr := a.session.Set(ctx, nil)

	if callErr != nil {
		a.notifier.Notify(notify.Failure("Error", "Failed to logout"))
		return callErr
	}
	a.notifier.Notify(notify.Success("Logged out successfully", "Come back soon!"))
	return setErr
}
