package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxPostChars bounds post and reply content. The max tags on
// Post and Reply repeat it.
const DefaultMaxPostChars = 500

// Post is a user-authored item. PostedBy is a snapshot of the author at
// fetch time and is not kept in sync with later profile changes.
type Post struct {
	ID        string    `json:"_id" yaml:"id" validate:"required"`
	PostedBy  *User     `json:"postedBy,omitempty" yaml:"postedBy,omitempty" validate:"-"`
	Content   string    `json:"content" yaml:"content" validate:"max=500"`
	Image     string    `json:"image,omitempty" yaml:"image,omitempty" validate:"omitempty,url"`
	Likes     []string  `json:"likes" yaml:"likes" validate:"dive,required"`
	Replies   []Reply   `json:"replies" yaml:"replies" validate:"-"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Reply belongs to exactly one post. Author fields are denormalized and
// the avatar may be empty.
type Reply struct {
	ID             string   `json:"_id,omitempty" yaml:"id,omitempty"`
	UserID         string   `json:"userID" yaml:"userID" validate:"required"`
	Username       string   `json:"username" yaml:"username"`
	UserProfilePic string   `json:"userProfilePic" yaml:"userProfilePic" validate:"omitempty,url"`
	Content        string   `json:"content" yaml:"content" validate:"max=500"`
	Image          string   `json:"image,omitempty" yaml:"image,omitempty" validate:"omitempty,url"`
	Likes          []string `json:"likes" yaml:"likes"`
}

// NewPost is the body of POST /api/posts/create. Image is omitted from
// the JSON when empty.
type NewPost struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// NewReply is the body of POST /api/posts/reply/{postId}.
type NewReply struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// LikedBy reports whether viewerID is in the like set.
func (p *Post) LikedBy(viewerID string) bool {
	if p == nil || viewerID == "" {
		return false
	}
	return Contains(p.Likes, viewerID)
}

// AuthorID returns the author's id or "" when the snapshot is absent.
func (p *Post) AuthorID() string {
	if p == nil || p.PostedBy == nil {
		return ""
	}
	return p.PostedBy.ID
}

// AuthorHandle returns the author's handle or "" when absent.
func (p *Post) AuthorHandle() string {
	if p == nil || p.PostedBy == nil {
		return ""
	}
	return p.PostedBy.Username
}

// Clone returns a deep copy.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.PostedBy = p.PostedBy.Clone()
	c.Likes = cloneStrings(p.Likes)
	if p.Replies != nil {
		c.Replies = make([]Reply, len(p.Replies))
		for i, r := range p.Replies {
			r.Likes = cloneStrings(r.Likes)
			c.Replies[i] = r
		}
	}
	return &c
}

// Validate checks the post, its author snapshot when present, and every
// reply.
func (p *Post) Validate() error {
	if p == nil {
		return NewDecodeError("post is missing", nil)
	}
	if err := validateStruct("post", p); err != nil {
		return err
	}
	if p.PostedBy != nil {
		if err := validateAuthor(p.PostedBy); err != nil {
			return NewDecodeError(fmt.Sprintf("post %s author", p.ID), err)
		}
	}
	for i := range p.Replies {
		if err := validateStruct(fmt.Sprintf("post %s reply %d", p.ID, i), &p.Replies[i]); err != nil {
			return err
		}
	}
	return nil
}

// AvatarOrFallback returns the avatar URI, or the initial of the handle
// when the avatar is missing.
func (r Reply) AvatarOrFallback() (uri string, fallback string) {
	if strings.TrimSpace(r.UserProfilePic) != "" {
		return r.UserProfilePic, ""
	}
	return "", initialOf(r.Username)
}

// PostList is a decoded collection response.
type PostList []Post

// Validate validates every element.
func (l PostList) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FindPost returns the index of the post with id, or -1.
func FindPost(posts []Post, id string) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}
