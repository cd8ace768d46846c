package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"whispr/internal/api"
	"whispr/internal/media"
	"whispr/internal/views"
)

func (c *CLI) feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Posts from you and the people you follow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			v := views.NewFeedView(c.app.client, c.app.session, c.app.notifier)
			defer v.Close()
			if err := v.Load(cmd.Context()); err != nil {
				return remoteFailure("feed", err)
			}
			return c.out.posts(v.Items(), c.viewerID())
		},
	}
}

func (c *CLI) exploreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Every post, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := views.NewExploreView(c.app.client, c.app.session, c.app.notifier)
			defer v.Close()
			if err := v.Load(cmd.Context()); err != nil {
				return remoteFailure("explore", err)
			}
			return c.out.posts(v.Items(), c.viewerID())
		},
	}
}

func (c *CLI) postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create, read and act on posts",
	}
	cmd.AddCommand(
		c.postCreateCmd(),
		c.postShowCmd(),
		c.postLikeCmd(),
		c.postDeleteCmd(),
		c.postReplyCmd(),
	)
	return cmd
}

func (c *CLI) postCreateCmd() *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "create <text...>",
		Short: "Share a new whisper",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			composer := views.NewComposer(c.app.client, c.app.uploader, c.app.notifier,
				views.WithMaxChars(c.app.cfg.PostMaxChars),
				views.WithMaxImageBytes(c.app.cfg.ImageMaxBytes()),
			)
			var image *media.Selection
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				if image, err = composer.SelectImage(filepath.Base(imagePath), data); err != nil {
					return err
				}
			}
			post, err := composer.Submit(cmd.Context(), strings.Join(args, " "), image)
			if err != nil {
				return remoteFailure("create post", err)
			}
			return c.out.postDetail(post, c.viewerID())
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "attach an image file")
	return cmd
}

// loadDetail opens and loads the detail view for id. A missing post is
// an error here.
func (c *CLI) loadDetail(ctx context.Context, id string) (*views.PostDetailView, error) {
	v := views.NewPostDetailView(c.app.client, c.app.session, c.app.uploader, id, c.app.notifier)
	v.SetMaxChars(c.app.cfg.PostMaxChars)
	if err := v.Load(ctx); err != nil && !api.IsNotFound(err) {
		v.Close()
		return nil, remoteFailure("load post", err)
	}
	if v.Post() == nil {
		v.Close()
		return nil, fmt.Errorf("post %s not found", id)
	}
	return v, nil
}

func (c *CLI) postShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a post and its replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.loadDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer v.Close()
			return c.out.postDetail(v.Post(), c.viewerID())
		},
	}
}

func (c *CLI) postLikeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Like a post, or unlike it if you already do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			v, err := c.loadDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer v.Close()
			if err := v.Like(cmd.Context()); err != nil {
				return remoteFailure("like", err)
			}
			post := v.Post()
			if post == nil {
				return fmt.Errorf("post %s not found", args[0])
			}
			verb := "Unliked"
			if v.Liked() {
				verb = "Liked"
			}
			return c.out.emit(post, func() {
				fmt.Fprintf(c.out.w, "%s post %s (%d likes)\n", verb, post.ID, len(post.Likes))
			})
		},
	}
}

func (c *CLI) postDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			v, err := c.loadDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer v.Close()
			if err := v.Delete(cmd.Context()); err != nil {
				return remoteFailure("delete", err)
			}
			return c.out.message("Deleted post %s", args[0])
		},
	}
}

func (c *CLI) postReplyCmd() *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "reply <id> <text...>",
		Short: "Reply to a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			v, err := c.loadDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer v.Close()

			var image *media.Selection
			if imagePath != "" {
				if image, err = media.LoadFile(imagePath, c.app.cfg.ImageMaxBytes()); err != nil {
					return err
				}
			}
			if err := v.Reply(cmd.Context(), strings.Join(args[1:], " "), image); err != nil {
				return remoteFailure("reply", err)
			}
			return c.out.postDetail(v.Post(), c.viewerID())
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "attach an image file")
	return cmd
}
