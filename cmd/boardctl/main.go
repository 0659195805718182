package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/client"
	"github.com/DoyleJ11/drawing-board/internal/discovery"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const releaseVersion = "0.1.0"

type globals struct {
	server  string
	board   string
	name    string
	timeout time.Duration
	verbose bool
}

func main() {
	g := &globals{}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(g).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "boardctl:", err)
		os.Exit(1)
	}
}

func newRootCmd(g *globals) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BOARDCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "boardctl",
		Short:   "Inspect and edit a running drawing board from the command line.",
		Version: releaseVersion,
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&g.server, "server", "s", "ws://localhost:3000/ws", "websocket URL of the server (env: BOARDCTL_SERVER)")
	fs.StringVarP(&g.board, "board", "B", "", "board code, the server default when empty (env: BOARDCTL_BOARD)")
	fs.StringVarP(&g.name, "name", "n", "boardctl", "name shown to other users (env: BOARDCTL_NAME)")
	fs.DurationVar(&g.timeout, "timeout", 10*time.Second, "how long to wait for the server (env: BOARDCTL_TIMEOUT)")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log protocol problems to stderr (env: BOARDCTL_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newSnapshotCmd(g),
		newFillCmd(g),
		newStrokeCmd(g),
		newUndoCmd(g),
		newResetCmd(g),
		newDiscoverCmd(),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func (g *globals) boardURL() (string, error) {
	u, err := url.Parse(g.server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if g.board != "" {
		q := u.Query()
		q.Set("board", g.board)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// connect dials the board and waits for the welcome so the replica holds
// the full log before any command runs.
func (g *globals) connect(ctx context.Context) (*client.Client, error) {
	logger := zap.NewNop()
	if g.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = l
	}

	addr, err := g.boardURL()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	c, err := client.Dial(ctx, addr, g.name, client.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	if err := c.WaitWelcome(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// edit runs fn against a connected client and closes it afterwards.
func (g *globals) edit(cmd *cobra.Command, fn func(context.Context, *client.Client) error) error {
	c, err := g.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()
	return fn(ctx, c)
}

func newDiscoverCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List drawing boards advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			return discovery.Browse(ctx, func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "ws://%s/ws\n", addr)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "how long to listen for answers")
	return cmd
}
