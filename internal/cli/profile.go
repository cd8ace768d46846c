package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"whispr/internal/api"
	"whispr/internal/views"
)

func (c *CLI) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <handle>",
		Short: "Show a user's profile and posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.loadProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer v.Close()
			return c.out.profile(v.Profile(), v.Posts(), v.IsFollowing(), c.viewerID())
		},
	}
	cmd.AddCommand(
		c.followCmd("follow", true),
		c.followCmd("unfollow", false),
		c.profileEditCmd(),
	)
	return cmd
}

func (c *CLI) loadProfile(ctx context.Context, handle string) (*views.ProfileView, error) {
	v := views.NewProfileView(c.app.client, c.app.session, handle, c.app.notifier)
	err := v.Load(ctx)
	if err != nil && !api.IsNotFound(err) {
		v.Close()
		return nil, remoteFailure("profile", err)
	}
	if !v.Found() {
		v.Close()
		return nil, fmt.Errorf("user @%s not found", handle)
	}
	return v, nil
}

// followCmd builds follow (want true) and unfollow (want false). Asking
// for the state the viewer is already in makes no request.
func (c *CLI) followCmd(use string, want bool) *cobra.Command {
	short := "Follow a user"
	if !want {
		short = "Stop following a user"
	}
	return &cobra.Command{
		Use:   use + " <handle>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			v, err := c.loadProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer v.Close()
			if v.IsOwn() {
				return fmt.Errorf("%s: you cannot follow yourself", use)
			}
			if v.IsFollowing() != want {
				if _, err := v.ToggleFollow(cmd.Context()); err != nil {
					return remoteFailure(use, err)
				}
			}
			if want {
				return c.out.message("Following @%s", args[0])
			}
			return c.out.message("Not following @%s", args[0])
		},
	}
}

func (c *CLI) profileEditCmd() *cobra.Command {
	var (
		name, username, email, bio string
		avatarPath                 string
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Update your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			editor := views.NewProfileEditor(c.app.client, c.app.session, c.app.uploader, c.app.notifier)
			editor.SetFolder(c.app.cfg.CDNProfileFolder)
			editor.SetMaxImageBytes(c.app.cfg.ImageMaxBytes())

			form, err := editor.Form()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("name") {
				form.Name = name
			}
			if f.Changed("username") {
				form.Username = username
			}
			if f.Changed("email") {
				form.Email = email
			}
			if f.Changed("bio") {
				form.Bio = bio
			}
			if avatarPath != "" {
				data, err := os.ReadFile(avatarPath)
				if err != nil {
					return fmt.Errorf("read avatar: %w", err)
				}
				url, err := editor.UploadAvatar(cmd.Context(), filepath.Base(avatarPath), data)
				if err != nil {
					return err
				}
				form.ProfilePic = url
			}

			handle, err := editor.Save(cmd.Context(), form)
			if err != nil {
				return remoteFailure("edit profile", err)
			}
			return c.out.message("Profile saved, now @%s", handle)
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&username, "username", "", "handle")
	f.StringVar(&email, "email", "", "email address")
	f.StringVar(&bio, "bio", "", "short bio")
	f.StringVar(&avatarPath, "avatar", "", "upload an image as the profile picture")
	return cmd
}
