// Package testserver runs an in-process Whispr backend for end-to-end tests.
// It speaks the same routes and JSON shapes as the real service, keeps its
// data in an in-memory sqlite database and authenticates with a jwt cookie.
package testserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"whispr/internal/models"
)

// CookieName is the session cookie set on login and signup.
const CookieName = "jwt"

const issuer = "whispr-testserver"

// RecordedRequest is one request as the server saw it.
type RecordedRequest struct {
	Method string
	Path   string
	Body   string
	// Cookie is the session cookie value, empty when none was sent.
	Cookie string
	// UserID is the account the cookie resolved to, if any.
	UserID string
}

type failure struct {
	method, path string
	status       int
	body         string
}

// Server is a running fake backend.
type Server struct {
	app    *fiber.App
	db     *gorm.DB
	secret []byte
	ln     net.Listener
	url    string

	writeMu sync.Mutex

	mu       sync.Mutex
	requests []RecordedRequest
	failures []failure
}

// New builds a server without starting it.
func New() (*Server, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	s := &Server{db: db, secret: []byte("testserver-" + newID())}
	s.app = fiber.New(fiber.Config{
		AppName:               "whispr-testserver",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return respondError(c, fe.Code, errors.New(fe.Message))
			}
			return respondError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.app.Use(s.record, s.injectFailures)
	s.routes()
	return s, nil
}

// Start listens on a random loopback port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.ln = ln
	s.url = "http://" + ln.Addr().String()
	go func() { _ = s.app.Listener(ln) }()
	return nil
}

// Run starts a server and stops it when t finishes.
func Run(t testing.TB) *Server {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("testserver: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("testserver: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// URL is the base URL clients should use.
func (s *Server) URL() string { return s.url }

// App exposes the fiber app for in-memory requests via App().Test.
func (s *Server) App() *fiber.App { return s.app }

// Close stops serving and drops the database.
func (s *Server) Close() error {
	err := s.app.ShutdownWithTimeout(5 * time.Second)
	if sqlDB, dbErr := s.db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}

// Requests returns every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Find returns the last request with method and path.
func (s *Server) Find(method, path string) (RecordedRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if r := s.requests[i]; r.Method == method && r.Path == path {
			return r, true
		}
	}
	return RecordedRequest{}, false
}

// FailNext makes the next request matching method and path prefix answer
// status with body instead of reaching the handler.
func (s *Server) FailNext(method, pathPrefix string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: pathPrefix, status: status, body: body})
}

func (s *Server) record(c *fiber.Ctx) error {
	req := RecordedRequest{
		Method: c.Method(),
		Path:   c.Path(),
		Body:   string(c.Body()),
		Cookie: c.Cookies(CookieName),
	}
	if req.Cookie != "" {
		if id, err := s.parseToken(req.Cookie); err == nil {
			req.UserID = id
			c.Locals("userID", id)
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return c.Next()
}

func (s *Server) injectFailures(c *fiber.Ctx) error {
	s.mu.Lock()
	for i, f := range s.failures {
		if f.method == c.Method() && strings.HasPrefix(c.Path(), f.path) {
			s.failures = append(s.failures[:i:i], s.failures[i+1:]...)
			s.mu.Unlock()
			return c.Status(f.status).SendString(f.body)
		}
	}
	s.mu.Unlock()
	return c.Next()
}

// requireAuth rejects requests without a valid session cookie.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	if _, ok := c.Locals("userID").(string); !ok {
		return respondError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError("Unauthorized"))
	}
	return c.Next()
}

func viewerID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

func (s *Server) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": issuer,
		"iat": now.Unix(),
		"exp": now.Add(15 * 24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func (s *Server) setSession(c *fiber.Ctx, userID string) error {
	token, err := s.issueToken(userID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		Expires:  time.Now().Add(15 * 24 * time.Hour),
	})
	return nil
}

func clearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Expires:  time.Now().Add(-time.Hour),
	})
}

// respondError writes {"error": message} the way the service does.
func respondError(c *fiber.Ctx, status int, err error) error {
	body := fiber.Map{"error": err.Error()}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		body["code"] = appErr.Code
	}
	return c.Status(status).JSON(body)
}

// reqCtx returns the request context for database calls.
func reqCtx(c *fiber.Ctx) context.Context { return c.UserContext() }
