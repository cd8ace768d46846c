package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"whispr/internal/cli"
	"whispr/internal/models"
	"whispr/internal/storage"
	"whispr/internal/testserver"
)

// harness runs CLI invocations against one fake backend and one store, the
// way separate processes share a config directory.
type harness struct {
	t     *testing.T
	srv   *testserver.Server
	store storage.Store
	stdin string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, srv: testserver.Run(t), store: storage.NewMemoryStore()}
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	c := cli.New(cli.Options{
		Stdin:  strings.NewReader(h.stdin),
		Stdout: &stdout,
		Stderr: &stderr,
		Store:  h.store,
	})
	err := c.Run(context.Background(), append(args, "--api", h.srv.URL()))
	return stdout.String(), stderr.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, stderr, err := h.run(args...)
	require.NoError(h.t, err, "stderr: %s", stderr)
	return out
}

func (h *harness) addUser(name, handle string) *models.User {
	h.t.Helper()
	acct, err := h.srv.AddUser(context.Background(), name, handle, handle+"@example.com", "secret1")
	require.NoError(h.t, err)
	return acct.User
}

func (h *harness) login(handle string) {
	h.t.Helper()
	h.mustRun("login", handle+"@example.com", "--password", "secret1")
}

func TestLoginFeedLogout(t *testing.T) {
	h := newHarness(t)
	ada := h.addUser("Ada Lovelace", "ada")
	_, err := h.srv.AddPost(context.Background(), ada.ID, "first whisper", "")
	require.NoError(t, err)

	assert.Equal(t, "Logged in as @ada\n", h.mustRun("login", "ada@example.com", "--password", "secret1"))

	var me models.User
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("whoami", "-o", "json")), &me))
	assert.Equal(t, ada.ID, me.ID)

	out := h.mustRun("feed")
	assert.Contains(t, out, "first whisper")
	assert.Contains(t, out, "@ada")
	req, ok := h.srv.Find(http.MethodGet, "/api/posts/feed")
	require.True(t, ok)
	assert.NotEmpty(t, req.Cookie)
	assert.Equal(t, ada.ID, req.UserID)

	assert.Equal(t, "Logged out\n", h.mustRun("logout"))
	assert.Equal(t, "Not logged in\n", h.mustRun("whoami"))
	_, err = h.store.Get(context.Background(), "whispr-user")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, _, err = h.run("feed")
	assert.ErrorContains(t, err, "not logged in")
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	h.addUser("Ada", "ada")
	h.stdin = "secret1\n"

	assert.Equal(t, "Logged in as @ada\n", h.mustRun("login", "ada@example.com"))
}

func TestLoginFailureShowsBackendMessage(t *testing.T) {
	h := newHarness(t)
	h.addUser("Ada", "ada")

	_, _, err := h.run("login", "ada@example.com", "--password", "wrong-password")
	assert.EqualError(t, err, "login: Invalid email or password")
	assert.Equal(t, "Not logged in\n", h.mustRun("whoami"))
}

func TestSignupLogsIn(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("signup", "--name", "Grace", "--username", "grace",
		"--email", "grace@example.com", "--password", "secret1")
	assert.Equal(t, "Welcome to Whispr, @grace\n", out)
	assert.Contains(t, h.mustRun("whoami"), "@grace")
}

func TestPostCreateAndLike(t *testing.T) {
	h := newHarness(t)
	h.addUser("Ada", "ada")
	h.login("ada")

	out, stderr, err := h.run("post", "create", "hello", "there", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Post created!")

	var post models.Post
	require.NoError(t, json.Unmarshal([]byte(out), &post))
	assert.Equal(t, "hello there", post.Content)
	req, ok := h.srv.Find(http.MethodPost, "/api/posts/create")
	require.True(t, ok)
	assert.Equal(t, `{"content":"hello there"}`, req.Body)

	assert.Equal(t, "Liked post "+post.ID+" (1 likes)\n", h.mustRun("post", "like", post.ID))
	assert.Equal(t, "Unliked post "+post.ID+" (0 likes)\n", h.mustRun("post", "like", post.ID))

	assert.Equal(t, "Deleted post "+post.ID+"\n", h.mustRun("post", "delete", post.ID))
	_, _, err = h.run("post", "show", post.ID)
	assert.ErrorContains(t, err, "not found")
}

func TestPostCreateRejectsBlankAndLongContent(t *testing.T) {
	h := newHarness(t)
	h.addUser("Ada", "ada")
	h.login("ada")

	_, _, err := h.run("post", "create", "   ")
	assert.Error(t, err)

	_, stderr, err := h.run("post", "create", strings.Repeat("x", 501))
	assert.Error(t, err)
	assert.Contains(t, stderr, "Content must be 500 characters or less")

	_, ok := h.srv.Find(http.MethodPost, "/api/posts/create")
	assert.False(t, ok, "nothing reaches the backend")
}

func TestPostReplyAndShow(t *testing.T) {
	h := newHarness(t)
	h.addUser("Ada", "ada")
	bob := h.addUser("Bob", "bob")
	post, err := h.srv.AddPost(context.Background(), bob.ID, "anyone around?", "")
	require.NoError(t, err)
	h.login("ada")

	_, stderr, err := h.run("post", "reply", post.ID, "right", "here")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Reply posted!")

	out := h.mustRun("post", "show", post.ID)
	assert.Contains(t, out, "anyone around?")
	assert.Contains(t, out, "@ada right here")

	_, _, err = h.run("post", "delete", post.ID)
	assert.Error(t, err, "only the author may delete")
}

func TestExploreYAML(t *testing.T) {
	h := newHarness(t)
	_, err := h.srv.Seed(context.Background(), 7, 2, 2)
	require.NoError(t, err)

	var posts []models.Post
	require.NoError(t, yaml.Unmarshal([]byte(h.mustRun("explore", "-o", "yaml")), &posts))
	assert.Len(t, posts, 4)
	for _, p := range posts {
		assert.NotEmpty(t, p.AuthorHandle())
	}
}

func TestProfileFollowUnfollow(t *testing.T) {
	h := newHarness(t)
	ada := h.addUser("Ada", "ada")
	h.addUser("Bob", "bob")
	h.login("ada")

	assert.Equal(t, "Following @bob\n", h.mustRun("profile", "follow", "bob"))
	assert.Equal(t, "Following @bob\n", h.mustRun("profile", "follow", "bob"))
	assert.Equal(t, 1, countPath(h.srv, "/api/users/follow/"), "second follow makes no request")

	var out struct {
		User  models.User   `json:"user"`
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("profile", "bob", "-o", "json")), &out))
	assert.Equal(t, []string{ada.ID}, out.User.Followers)

	assert.Equal(t, "Not following @bob\n", h.mustRun("profile", "unfollow", "bob"))

	_, _, err := h.run("profile", "follow", "ada")
	assert.ErrorContains(t, err, "cannot follow yourself")

	_, _, err = h.run("profile", "ghost")
	assert.ErrorContains(t, err, "@ghost not found")
}

func TestProfileEditChangesHandle(t *testing.T) {
	h := newHarness(t)
	h.addUser("Ada", "ada")
	h.login("ada")

	assert.Equal(t, "Profile saved, now @countess\n",
		h.mustRun("profile", "edit", "--username", "countess", "--bio", "first programmer"))

	var me models.User
	require.NoError(t, yaml.Unmarshal([]byte(h.mustRun("whoami", "-o", "yaml")), &me))
	assert.Equal(t, "countess", me.Username)
	assert.Equal(t, "first programmer", me.Bio)
}

func TestSearchMatchesHandles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bob := h.addUser("Bob", "bob")
	bobby := h.addUser("Bobby", "bobby")
	al := h.addUser("Al", "al")
	for _, id := range []string{bob.ID, bobby.ID, al.ID} {
		_, err := h.srv.AddPost(ctx, id, "hi", "")
		require.NoError(t, err)
	}

	out := h.mustRun("search", "BOB")
	assert.Contains(t, out, "@bob")
	assert.Contains(t, out, "@bobby")
	assert.NotContains(t, out, "@al")
}

func TestUnknownOutputFormat(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("explore", "-o", "xml")
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestMetricsCommand(t *testing.T) {
	h := newHarness(t)
	h.mustRun("explore")

	out := h.mustRun("metrics")
	assert.Contains(t, out, "whispr_api_request_duration_seconds")
}

func countPath(srv *testserver.Server, prefix string) int {
	n := 0
	for _, r := range srv.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}
