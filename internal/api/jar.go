package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"whispr/internal/observability"
	"whispr/internal/storage"
)

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PersistentJar is a cookie jar whose cookies for the backend host are
// mirrored to a Store, so a later process still carries the session
// credential.
type PersistentJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	store  storage.Store
	key    string
	base   *url.URL
	logger *observability.Logger
}

// NewPersistentJar restores the cookies saved under key for baseURL. A
// corrupt entry is deleted and the jar starts empty.
func NewPersistentJar(ctx context.Context, store storage.Store, key, baseURL string, logger *observability.Logger) (*PersistentJar, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &PersistentJar{
		jar:    jar,
		store:  store,
		key:    key,
		base:   base,
		logger: observability.OrGlobal(logger),
	}
	j.restore(ctx)
	return j, nil
}

func (j *PersistentJar) restore(ctx context.Context) {
	raw, err := j.store.Get(ctx, j.key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		j.logger.WarnContext(ctx, "cookie restore failed", slog.String("error", err.Error()))
		return
	}

	var saved []storedCookie
	if err := json.Unmarshal(raw, &saved); err != nil {
		j.logger.WarnContext(ctx, "discarding corrupt cookie entry", slog.String("error", err.Error()))
		_ = j.store.Delete(ctx, j.key)
		return
	}

	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if c.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	j.jar.SetCookies(j.base, cookies)
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	if u.Host == j.base.Host {
		j.persist(context.Background())
	}
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie and the persisted entry.
func (j *PersistentJar) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.jar = jar
	return j.store.Delete(ctx, j.key)
}

func (j *PersistentJar) persist(ctx context.Context) {
	current := j.jar.Cookies(j.base)
	if len(current) == 0 {
		if err := j.store.Delete(ctx, j.key); err != nil {
			j.logger.WarnContext(ctx, "cookie delete failed", slog.String("error", err.Error()))
		}
		return
	}

	saved := make([]storedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, storedCookie{Name: c.Name, Value: c.Value})
	}
	raw, err := json.Marshal(saved)
	if err != nil {
		return
	}
	if err := j.store.Set(ctx, j.key, raw); err != nil {
		j.logger.WarnContext(ctx, "cookie persist failed", slog.String("error", err.Error()))
	}
}
