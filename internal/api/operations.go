package api

import (
	"context"
	"net/http"
	"net/url"

	"whispr/internal/models"
)

// Signup creates an account and returns the new user.
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	var user models.User
	err := c.Call(ctx, Request{Operation: "signup", Method: http.MethodPost, Path: "/api/users/signup", Body: req}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for the session cookie and the user.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	var user models.User
	err := c.Call(ctx, Request{Operation: "login", Method: http.MethodPost, Path: "/api/users/login", Body: req}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Call(ctx, Request{Operation: "logout", Method: http.MethodPost, Path: "/api/users/logout"}, nil)
}

// GetProfile looks a user up by handle.
func (c *Client) GetProfile(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := c.Call(ctx, Request{
		Operation: "get_profile",
		Method:    http.MethodGet,
		Path:      "/api/users/profile/" + url.PathEscape(username),
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.Call(ctx, Request{
		Operation: "follow",
		Method:    http.MethodPost,
		Path:      "/api/users/follow/" + url.PathEscape(userID),
	}, nil)
}

func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.Call(ctx, Request{
		Operation: "unfollow",
		Method:    http.MethodPost,
		Path:      "/api/users/unfollow/" + url.PathEscape(userID),
	}, nil)
}

// UpdateProfile sends only the fields set in update.
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	return c.Call(ctx, Request{Operation: "update_profile", Method: http.MethodPost, Path: "/api/users/update", Body: update}, nil)
}

// CreatePost publishes a post. The image key is absent when post.Image is empty.
func (c *Client) CreatePost(ctx context.Context, post models.NewPost) (*models.Post, error) {
	var created models.Post
	err := c.Call(ctx, Request{Operation: "create_post", Method: http.MethodPost, Path: "/api/posts/create", Body: post}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := c.Call(ctx, Request{
		Operation: "get_post",
		Method:    http.MethodGet,
		Path:      "/api/posts/get/" + url.PathEscape(postID),
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.Call(ctx, Request{
		Operation: "delete_post",
		Method:    http.MethodDelete,
		Path:      "/api/posts/delete/" + url.PathEscape(postID),
	}, nil)
}

// LikePost toggles the viewer's like on a post.
func (c *Client) LikePost(ctx context.Context, postID string) error {
	return c.Call(ctx, Request{
		Operation: "like_post",
		Method:    http.MethodPost,
		Path:      "/api/posts/like/" + url.PathEscape(postID),
	}, nil)
}

func (c *Client) ReplyToPost(ctx context.Context, postID string, reply models.NewReply) error {
	return c.Call(ctx, Request{
		Operation: "reply_post",
		Method:    http.MethodPost,
		Path:      "/api/posts/reply/" + url.PathEscape(postID),
		Body:      reply,
	}, nil)
}

// GetFeed returns posts from followed users.
func (c *Client) GetFeed(ctx context.Context) ([]models.Post, error) {
	return c.listPosts(ctx, "get_feed", "/api/posts/feed")
}

func (c *Client) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	return c.listPosts(ctx, "get_all_posts", "/api/posts/all")
}

func (c *Client) listPosts(ctx context.Context, op, path string) ([]models.Post, error) {
	var posts models.PostList
	if err := c.Call(ctx, Request{Operation: op, Method: http.MethodGet, Path: path}, &posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = models.PostList{}
	}
	return posts, nil
}
