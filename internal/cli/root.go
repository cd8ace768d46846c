package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"whispr/internal/observability"
)

// CLI is the whispr command tree plus the App it bootstraps on demand.
type CLI struct {
	opts Options
	root *cobra.Command

	configFile string
	apiURL     string
	output     string

	app *App
	out *printer
}

// New builds the command tree.
func New(opts Options) *CLI {
	c := &CLI{opts: opts.withDefaults()}
	c.root = &cobra.Command{
		Use:           "whispr",
		Short:         "Terminal client for the Whispr micro-post service",
		Version:       c.opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	c.root.SetIn(c.opts.Stdin)
	c.root.SetOut(c.opts.Stdout)
	c.root.SetErr(c.opts.Stderr)

	flags := c.root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default ./whispr.yml)")
	flags.StringVar(&c.apiURL, "api", "", "backend base URL, overrides API_BASE_URL")
	flags.StringVarP(&c.output, "output", "o", FormatText, "output format: text, json or yaml")

	c.root.AddCommand(
		c.signupCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.refreshCmd(),
		c.feedCmd(),
		c.exploreCmd(),
		c.postCmd(),
		c.profileCmd(),
		c.searchCmd(),
		c.metricsCmd(),
	)
	return c
}

// Command exposes the root cobra command.
func (c *CLI) Command() *cobra.Command { return c.root }

// Run executes args and releases everything the command opened.
func (c *CLI) Run(ctx context.Context, args []string) error {
	c.root.SetArgs(args)
	err := c.root.ExecuteContext(ctx)
	if c.app != nil {
		if c.app.cfg.MetricsEnabled {
			_ = observability.WriteMetrics(c.opts.Stderr)
		}
		if cerr := c.app.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
		c.app = nil
	}
	return err
}

func (c *CLI) setup(ctx context.Context) error {
	if err := checkFormat(c.output); err != nil {
		return err
	}
	app, err := bootstrap(ctx, c.opts, c.configFile, c.apiURL)
	if err != nil {
		return err
	}
	c.app = app
	c.out = newPrinter(c.opts.Stdout, c.output)
	return nil
}

// Execute runs the CLI against the real terminal and returns the exit code.
func Execute(ctx context.Context, version string) int {
	c := New(Options{Version: version})
	if err := c.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(c.opts.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// readPassword prompts on a terminal without echo, or reads one line from
// piped input.
func (c *CLI) readPassword(prompt string) (string, error) {
	if f, ok := c.opts.Stdin.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		fmt.Fprint(c.opts.Stderr, prompt)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.opts.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(c.opts.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// viewerID is the logged in user's id, or "".
func (c *CLI) viewerID() string {
	if u := c.app.session.Current(); u != nil {
		return u.ID
	}
	return ""
}
