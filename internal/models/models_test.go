package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    *User
		wantErr bool
	}{
		{name: "valid", user: &User{ID: "u1", Name: "Ada", Username: "ada"}},
		{name: "nil", user: nil, wantErr: true},
		{name: "missing id", user: &User{Name: "Ada", Username: "ada"}, wantErr: true},
		{name: "missing username", user: &User{ID: "u1", Name: "Ada"}, wantErr: true},
		{name: "bad email", user: &User{ID: "u1", Name: "Ada", Username: "ada", Email: "nope"}, wantErr: true},
		{name: "empty follower id", user: &User{ID: "u1", Name: "Ada", Username: "ada", Followers: []string{""}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsDecode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPostValidate_ChecksAuthorAndReplies(t *testing.T) {
	p := &Post{ID: "p1", PostedBy: &User{}}
	assert.True(t, IsDecode(p.Validate()))

	p = &Post{ID: "p1", Replies: []Reply{{Content: "x"}}}
	assert.True(t, IsDecode(p.Validate()))

	p = &Post{ID: "p1", PostedBy: &User{ID: "u1"}, Replies: []Reply{{UserID: "u2"}}}
	assert.NoError(t, p.Validate())

	// A post without an author snapshot is still renderable.
	assert.NoError(t, (&Post{ID: "p2"}).Validate())
}

func TestPostValidate_ContentAndURLs(t *testing.T) {
	long := strings.Repeat("é", DefaultMaxPostChars)
	tests := []struct {
		name    string
		post    *Post
		wantErr bool
	}{
		{name: "content at limit", post: &Post{ID: "p1", Content: long}},
		{name: "content over limit", post: &Post{ID: "p1", Content: long + "x"}, wantErr: true},
		{name: "image url", post: &Post{ID: "p1", Image: "https://cdn.example/a.png"}},
		{name: "image not a url", post: &Post{ID: "p1", Image: "a.png"}, wantErr: true},
		{name: "reply over limit", post: &Post{ID: "p1", Replies: []Reply{{UserID: "u2", Content: long + "x"}}}, wantErr: true},
		{name: "reply image not a url", post: &Post{ID: "p1", Replies: []Reply{{UserID: "u2", Image: "nope"}}}, wantErr: true},
		{name: "reply avatar not a url", post: &Post{ID: "p1", Replies: []Reply{{UserID: "u2", UserProfilePic: "nope"}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.post.Validate()
			if tt.wantErr {
				assert.True(t, IsDecode(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPostList_DecodesBackendShape(t *testing.T) {
	raw := `[{"_id":"p1","postedBy":{"_id":"u1","name":"Ada","username":"ada","profilepic":""},
		"content":"hi","likes":["u2"],"replies":[{"userID":"u2","content":"yo","username":"bob","userProfilePic":""}],
		"createdAt":"2024-01-02T03:04:05Z"}]`

	var list PostList
	require.NoError(t, json.Unmarshal([]byte(raw), &list))
	require.NoError(t, list.Validate())
	require.Len(t, list, 1)
	assert.Equal(t, "ada", list[0].AuthorHandle())
	assert.True(t, list[0].LikedBy("u2"))
	assert.False(t, list[0].LikedBy(""))
}

func TestNewPost_OmitsEmptyImage(t *testing.T) {
	b, err := json.Marshal(NewPost{Content: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"hello"}`, string(b))
	assert.Equal(t, `{"content":"hello"}`, string(b))

	b, err = json.Marshal(NewPost{Content: "hello", Image: "https://cdn/x.png"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"hello","image":"https://cdn/x.png"}`, string(b))
}

func TestProfileUpdate_OmitsNilFields(t *testing.T) {
	bio := "hi"
	b, err := json.Marshal(ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bio":"hi"}`, string(b))
}

func TestSetHelpers(t *testing.T) {
	set := []string{"a", "b"}

	assert.Equal(t, []string{"a", "b"}, AddUnique(set, "a"))
	assert.Equal(t, []string{"a", "b", "c"}, AddUnique(set, "c"))
	assert.Equal(t, []string{"b"}, Remove([]string{"a", "b", "a"}, "a"))
	assert.Empty(t, Remove(nil, "a"))
	// Original backing array is untouched.
	assert.Equal(t, []string{"a", "b"}, set)
}

func TestUserSetFollower(t *testing.T) {
	u := &User{ID: "t", Followers: []string{"x"}}

	u.SetFollower("v", true)
	u.SetFollower("v", true)
	assert.Equal(t, []string{"x", "v"}, u.Followers)
	assert.True(t, u.FollowedBy("v"))

	u.SetFollower("v", false)
	assert.Equal(t, []string{"x"}, u.Followers)
	assert.False(t, u.FollowedBy("v"))
}

func TestInitialFallback(t *testing.T) {
	assert.Equal(t, "A", (&User{Name: "ada"}).Initial())
	assert.Equal(t, "?", (&User{}).Initial())
	assert.Equal(t, "?", (*User)(nil).Initial())

	uri, glyph := Reply{Username: "bob"}.AvatarOrFallback()
	assert.Empty(t, uri)
	assert.Equal(t, "B", glyph)

	uri, glyph = Reply{Username: "bob", UserProfilePic: "https://x/y.png"}.AvatarOrFallback()
	assert.Equal(t, "https://x/y.png", uri)
	assert.Empty(t, glyph)
}

func TestCloneIsDeep(t *testing.T) {
	p := &Post{ID: "p", PostedBy: &User{ID: "u", Followers: []string{"a"}}, Likes: []string{"x"},
		Replies: []Reply{{UserID: "r", Likes: []string{"y"}}}}
	c := p.Clone()

	c.Likes[0] = "changed"
	c.PostedBy.Followers[0] = "changed"
	c.Replies[0].Likes[0] = "changed"

	assert.Equal(t, "x", p.Likes[0])
	assert.Equal(t, "a", p.PostedBy.Followers[0])
	assert.Equal(t, "y", p.Replies[0].Likes[0])
}

func TestValidateInput(t *testing.T) {
	err := ValidateInput(SignupRequest{Name: "a", Username: "a", Email: "bad", Password: "123456"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "Email")

	assert.NoError(t, ValidateInput(LoginRequest{Email: "a@b.co", Password: "x"}))
}

func TestFindPost(t *testing.T) {
	posts := []Post{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, 1, FindPost(posts, "b"))
	assert.Equal(t, -1, FindPost(posts, "z"))
}
