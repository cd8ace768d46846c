package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"whispr/internal/models"
	"whispr/internal/notify"
)

// Output formats accepted by --output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

type styles struct {
	name    lipgloss.Style
	handle  lipgloss.Style
	muted   lipgloss.Style
	liked   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

// newStyles binds styles to w, so a pipe or file gets plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		name:    r.NewStyle().Bold(true),
		handle:  r.NewStyle().Foreground(lipgloss.Color("#1D9EA3")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#6C7A80")),
		liked:   r.NewStyle().Foreground(lipgloss.Color("#E74C3C")),
		success: r.NewStyle().Foreground(lipgloss.Color("#2CD7C7")).Bold(true),
		failure: r.NewStyle().Foreground(lipgloss.Color("#E74C3C")).Bold(true),
	}
}

// printer writes command results in the selected format.
type printer struct {
	w      io.Writer
	format string
	st     styles
	now    func() time.Time
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: format, st: newStyles(w), now: time.Now}
}

// emit writes v as JSON or YAML, or calls text for the text format.
func (p *printer) emit(v any, text func()) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text()
		return nil
	}
}

// message prints a one-line status in text mode and {"message": ...}
// otherwise.
func (p *printer) message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return p.emit(map[string]string{"message": msg}, func() {
		fmt.Fprintln(p.w, msg)
	})
}

func (p *printer) ago(t time.Time) string {
	if t.IsZero() {
		return "just now"
	}
	return humanize.RelTime(t, p.now(), "ago", "from now")
}

func (p *printer) post(post models.Post, viewerID string) {
	author := "unknown"
	handle := ""
	if post.PostedBy != nil {
		author = post.PostedBy.Name
		handle = post.PostedBy.Username
	}
	fmt.Fprintf(p.w, "%s %s %s\n",
		p.st.name.Render(author),
		p.st.handle.Render("@"+handle),
		p.st.muted.Render("· "+p.ago(post.CreatedAt)),
	)
	if post.Content != "" {
		fmt.Fprintln(p.w, post.Content)
	}
	if post.Image != "" {
		fmt.Fprintln(p.w, p.st.muted.Render("[image] "+post.Image))
	}

	heart := "♡"
	if post.LikedBy(viewerID) {
		heart = p.st.liked.Render("♥")
	}
	fmt.Fprintf(p.w, "%s %s  ↩ %s  %s\n",
		heart,
		humanize.Comma(int64(len(post.Likes))),
		humanize.Comma(int64(len(post.Replies))),
		p.st.muted.Render("id:"+post.ID),
	)
}

func (p *printer) posts(posts []models.Post, viewerID string) error {
	if posts == nil {
		posts = []models.Post{}
	}
	return p.emit(posts, func() {
		if len(posts) == 0 {
			fmt.Fprintln(p.w, p.st.muted.Render("No posts yet."))
			return
		}
		for i, post := range posts {
			if i > 0 {
				fmt.Fprintln(p.w)
			}
			p.post(post, viewerID)
		}
	})
}

// postDetail renders a post and its replies in backend order.
func (p *printer) postDetail(post *models.Post, viewerID string) error {
	return p.emit(post, func() {
		p.post(*post, viewerID)
		if len(post.Replies) == 0 {
			return
		}
		fmt.Fprintln(p.w)
		for _, r := range post.Replies {
			fmt.Fprintf(p.w, "  %s %s\n", p.st.handle.Render("@"+r.Username), r.Content)
			if r.Image != "" {
				fmt.Fprintf(p.w, "  %s\n", p.st.muted.Render("[image] "+r.Image))
			}
		}
	})
}

func (p *printer) user(u *models.User, following bool) {
	fmt.Fprintf(p.w, "%s %s\n", p.st.name.Render(u.Name), p.st.handle.Render("@"+u.Username))
	if u.Bio != "" {
		fmt.Fprintln(p.w, u.Bio)
	}
	line := fmt.Sprintf("%s followers · %s following",
		humanize.Comma(int64(len(u.Followers))),
		humanize.Comma(int64(len(u.Following))),
	)
	if !u.CreatedAt.IsZero() {
		line += " · joined " + p.ago(u.CreatedAt)
	}
	if following {
		line += " · you follow"
	}
	fmt.Fprintln(p.w, p.st.muted.Render(line))
}

type profileOutput struct {
	User  *models.User  `json:"user" yaml:"user"`
	Posts []models.Post `json:"posts" yaml:"posts"`
}

func (p *printer) profile(u *models.User, posts []models.Post, following bool, viewerID string) error {
	if posts == nil {
		posts = []models.Post{}
	}
	return p.emit(profileOutput{User: u, Posts: posts}, func() {
		p.user(u, following)
		for _, post := range posts {
			fmt.Fprintln(p.w)
			p.post(post, viewerID)
		}
	})
}

type searchResult struct {
	models.User `yaml:",inline"`
	Following   bool `json:"following" yaml:"following"`
}

func (p *printer) users(users []models.User, following func(models.User) bool) error {
	out := make([]searchResult, len(users))
	for i, u := range users {
		out[i] = searchResult{User: u, Following: following(u)}
	}
	return p.emit(out, func() {
		if len(users) == 0 {
			fmt.Fprintln(p.w, p.st.muted.Render("No users found."))
			return
		}
		for _, r := range out {
			mark := " "
			if r.Following {
				mark = p.st.success.Render("✓")
			}
			fmt.Fprintf(p.w, "%s %s %s\n", mark, p.st.name.Render(r.Name), p.st.handle.Render("@"+r.Username))
		}
	})
}

// TerminalNotifier prints toasts as single styled lines.
type TerminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
	st styles
}

// NewTerminalNotifier returns a notifier writing to w.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{w: w, st: newStyles(w)}
}

func (n *TerminalNotifier) Notify(t notify.Toast) {
	icon := n.st.success.Render("✓")
	if t.Variant == notify.Destructive {
		icon = n.st.failure.Render("✗")
	}
	parts := []string{icon, t.Title}
	if t.Description != "" {
		parts = append(parts, n.st.muted.Render(t.Description))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, strings.Join(parts, " "))
}
