package views

import (
	"context"
	"sync"

	"whispr/internal/media"
	"whispr/internal/models"
)

// apiStub is a stub for API. Unset funcs fall back to an in-memory backend
// over posts and users.
type apiStub struct {
	mu    sync.Mutex
	posts []models.Post
	users map[string]*models.User
	calls []string

	getFeedFn       func(context.Context) ([]models.Post, error)
	getAllPostsFn   func(context.Context) ([]models.Post, error)
	getPostFn       func(context.Context, string) (*models.Post, error)
	createPostFn    func(context.Context, models.NewPost) (*models.Post, error)
	deletePostFn    func(context.Context, string) error
	likePostFn      func(context.Context, string) error
	replyToPostFn   func(context.Context, string, models.NewReply) error
	getProfileFn    func(context.Context, string) (*models.User, error)
	followFn        func(context.Context, string) error
	unfollowFn      func(context.Context, string) error
	updateProfileFn func(context.Context, models.ProfileUpdate) error
}

func (s *apiStub) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *apiStub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *apiStub) count(call string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (s *apiStub) snapshot() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Post, len(s.posts))
	for i := range s.posts {
		out[i] = *s.posts[i].Clone()
	}
	return out
}

func (s *apiStub) GetFeed(ctx context.Context) ([]models.Post, error) {
	s.record("get_feed")
	if s.getFeedFn != nil {
		return s.getFeedFn(ctx)
	}
	return s.snapshot(), nil
}

func (s *apiStub) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	s.record("get_all_posts")
	if s.getAllPostsFn != nil {
		return s.getAllPostsFn(ctx)
	}
	return s.snapshot(), nil
}

func (s *apiStub) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.record("get_post")
	if s.getPostFn != nil {
		return s.getPostFn(ctx, id)
	}
	posts := s.snapshot()
	if i := models.FindPost(posts, id); i >= 0 {
		return &posts[i], nil
	}
	return nil, notFound("get_post")
}

func (s *apiStub) CreatePost(ctx context.Context, p models.NewPost) (*models.Post, error) {
	s.record("create_post")
	if s.createPostFn != nil {
		return s.createPostFn(ctx, p)
	}
	return &models.Post{ID: "new", Content: p.Content, Image: p.Image}, nil
}

func (s *apiStub) DeletePost(ctx context.Context, id string) error {
	s.record("delete_post")
	if s.deletePostFn != nil {
		return s.deletePostFn(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := models.FindPost(s.posts, id); i >= 0 {
		s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
	}
	return nil
}

func (s *apiStub) LikePost(ctx context.Context, id string) error {
	s.record("like_post")
	if s.likePostFn != nil {
		return s.likePostFn(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := models.FindPost(s.posts, id); i >= 0 {
		p := &s.posts[i]
		if models.Contains(p.Likes, viewerID) {
			p.Likes = models.Remove(p.Likes, viewerID)
		} else {
			p.Likes = models.AddUnique(p.Likes, viewerID)
		}
	}
	return nil
}

func (s *apiStub) ReplyToPost(ctx context.Context, id string, r models.NewReply) error {
	s.record("reply_post")
	if s.replyToPostFn != nil {
		return s.replyToPostFn(ctx, id, r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := models.FindPost(s.posts, id); i >= 0 {
		s.posts[i].Replies = append(s.posts[i].Replies, models.Reply{UserID: viewerID, Username: "me", Content: r.Content, Image: r.Image})
	}
	return nil
}

func (s *apiStub) GetProfile(ctx context.Context, handle string) (*models.User, error) {
	s.record("get_profile")
	if s.getProfileFn != nil {
		return s.getProfileFn(ctx, handle)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[handle]; ok {
		return u.Clone(), nil
	}
	return nil, notFound("get_profile")
}

func (s *apiStub) Follow(ctx context.Context, id string) error {
	s.record("follow")
	if s.followFn != nil {
		return s.followFn(ctx, id)
	}
	s.setFollower(id, true)
	return nil
}

func (s *apiStub) Unfollow(ctx context.Context, id string) error {
	s.record("unfollow")
	if s.unfollowFn != nil {
		return s.unfollowFn(ctx, id)
	}
	s.setFollower(id, false)
	return nil
}

func (s *apiStub) setFollower(id string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.SetFollower(viewerID, on)
		}
	}
	for i := range s.posts {
		if a := s.posts[i].PostedBy; a != nil && a.ID == id {
			a.SetFollower(viewerID, on)
		}
	}
}

func (s *apiStub) UpdateProfile(ctx context.Context, u models.ProfileUpdate) error {
	s.record("update_profile")
	if s.updateProfileFn != nil {
		return s.updateProfileFn(ctx, u)
	}
	return nil
}

// viewerStub is a fixed session.
type viewerStub struct {
	mu        sync.Mutex
	user      *models.User
	refreshed []string
	refreshFn func(context.Context, string) error
}

func (v *viewerStub) Current() *models.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.user.Clone()
}

func (v *viewerStub) RefreshHandle(ctx context.Context, handle string) error {
	v.mu.Lock()
	v.refreshed = append(v.refreshed, handle)
	v.mu.Unlock()
	if v.refreshFn != nil {
		return v.refreshFn(ctx, handle)
	}
	return nil
}

// uploaderStub is a stub for Uploader.
type uploaderStub struct {
	mu       sync.Mutex
	folders  []string
	uploadFn func(context.Context, *media.Selection, string) (string, error)
}

func (u *uploaderStub) Upload(ctx context.Context, sel *media.Selection, folder string) (string, error) {
	u.mu.Lock()
	u.folders = append(u.folders, folder)
	u.mu.Unlock()
	if u.uploadFn != nil {
		return u.uploadFn(ctx, sel, folder)
	}
	return "https://cdn.example/" + sel.Name, nil
}
