// Package models contains the client-side view of the Whispr domain:
// users, posts and replies as the backend serves them, plus the request
// shapes sent back to it.
package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// User is a profile as returned by the backend. The authenticated
// principal (the session) has the same shape.
type User struct {
	ID         string    `json:"_id" yaml:"id" validate:"required"`
	Name       string    `json:"name" yaml:"name" validate:"required"`
	Username   string    `json:"username" yaml:"username" validate:"required"`
	Email      string    `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	ProfilePic string    `json:"profilepic,omitempty" yaml:"profilepic,omitempty" validate:"omitempty,url"`
	Followers  []string  `json:"followers" yaml:"followers" validate:"dive,required"`
	Following  []string  `json:"following" yaml:"following" validate:"dive,required"`
	Bio        string    `json:"bio,omitempty" yaml:"bio,omitempty"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// FollowedBy reports whether viewerID is in the follower set.
func (u *User) FollowedBy(viewerID string) bool {
	if u == nil || viewerID == "" {
		return false
	}
	return Contains(u.Followers, viewerID)
}

// SetFollower adds or removes viewerID from the follower set, keeping
// set semantics.
func (u *User) SetFollower(viewerID string, following bool) {
	if following {
		u.Followers = AddUnique(u.Followers, viewerID)
		return
	}
	u.Followers = Remove(u.Followers, viewerID)
}

// Initial is the fallback glyph shown when no avatar is available.
func (u *User) Initial() string {
	if u == nil {
		return "?"
	}
	return initialOf(u.Name)
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Followers = cloneStrings(u.Followers)
	c.Following = cloneStrings(u.Following)
	return &c
}

// Validate checks the fields every consumer dereferences.
func (u *User) Validate() error {
	if u == nil {
		return NewDecodeError("user is missing", nil)
	}
	return validateStruct("user", u)
}

// SignupRequest is the body of POST /api/users/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the body of POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate is a partial user. Nil fields are not sent.
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	Username   *string `json:"username,omitempty"`
	Email      *string `json:"email,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	ProfilePic *string `json:"profilepic,omitempty"`
}

func initialOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
