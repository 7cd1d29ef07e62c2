// Command ccbridge bridges a Telegram chat to a Claude Code session
// running in a local tmux pane.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhubert/ccbridge/binding"
	"github.com/zhubert/ccbridge/bot"
	"github.com/zhubert/ccbridge/config"
	pexec "github.com/zhubert/ccbridge/exec"
	"github.com/zhubert/ccbridge/identity"
	"github.com/zhubert/ccbridge/logger"
	"github.com/zhubert/ccbridge/paths"
	"github.com/zhubert/ccbridge/store"
	"github.com/zhubert/ccbridge/syncgate"
	"github.com/zhubert/ccbridge/tmux"
	"github.com/zhubert/ccbridge/usage"
)

// Version is set via ldflags.
var Version = "dev"

var (
	flagConfig string
	flagDebug  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ccbridge",
		Short:         "Telegram bridge for Claude Code in tmux",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default ~/.claude/ccbridge.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Debug logging")

	rootCmd.AddCommand(serveCmd(), reportCmd(), statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bridge bundles everything the subcommands wire up.
type bridge struct {
	cfg        *config.Config
	store      *store.Store
	bindings   *binding.Store
	gate       *syncgate.Gate
	resolver   *identity.Resolver
	pane       *tmux.Pane
	controller *tmux.Controller
	usage      *usage.Aggregator
}

// loadBridge loads config and wires the component graph.
func loadBridge() (*bridge, error) {
	cfgPath := flagConfig
	if cfgPath == "" {
		var err error
		cfgPath, err = paths.ConfigFilePath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Debug = true
	}
	logger.SetDebug(cfg.Debug)

	projectsDir, err := paths.ProjectsDir()
	if err != nil {
		return nil, err
	}
	mapFile, err := paths.SessionChatMapFile()
	if err != nil {
		return nil, err
	}
	currentFile, err := paths.CurrentSessionFile()
	if err != nil {
		return nil, err
	}
	chatIDFile, err := paths.ChatIDFile()
	if err != nil {
		return nil, err
	}
	pausedFile, err := paths.SyncPausedFile()
	if err != nil {
		return nil, err
	}
	terminatedFile, err := paths.SyncTerminatedFile()
	if err != nil {
		return nil, err
	}
	pendingFile, err := paths.PendingFile()
	if err != nil {
		return nil, err
	}

	b := &bridge{cfg: cfg}
	b.store = store.New(projectsDir, store.WithMaxAgeDays(cfg.RecencyDays))
	b.bindings = binding.New(mapFile, currentFile, chatIDFile)
	b.gate = syncgate.New(pausedFile, terminatedFile, pendingFile)
	b.pane = tmux.NewPane(cfg.TmuxSession, pexec.NewRealExecutor())
	b.controller = tmux.NewController(b.pane, b.store)
	b.usage = usage.NewAggregator(projectsDir)
	b.resolver = identity.New(
		func() string { return b.pane.Title(context.Background()) },
		b.bindings.CurrentSession,
		b.store.FreshestSession,
	)
	return b, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			br, err := loadBridge()
			if err != nil {
				return err
			}
			if err := br.cfg.Validate(); err != nil {
				return err
			}
			defer logger.Close()

			svc := bot.NewService(br.cfg, br.store, br.bindings, br.gate,
				br.resolver, br.pane, br.controller, br.usage)
			tg, err := bot.New(br.cfg, svc, br.gate, br.bindings)
			if err != nil {
				return err
			}
			rec := bot.NewReconciler(br.resolver, br.bindings,
				time.Duration(br.cfg.PollSeconds)*time.Second,
				func(sid string) { br.pane.SetTitle(context.Background(), sid) })

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return tg.Start(ctx) })
			g.Go(func() error { return rec.Run(ctx) })

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Get().Info("bridge stopped")
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the token usage report",
		RunE: func(cmd *cobra.Command, args []string) error {
			br, err := loadBridge()
			if err != nil {
				return err
			}
			snap := br.usage.Scan(br.cfg.RecencyDays)
			fmt.Println(usage.FormatReport(snap, br.store))
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print tmux, sync, and binding status",
		RunE: func(cmd *cobra.Command, args []string) error {
			br, err := loadBridge()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			running := "not found"
			if br.pane.Exists(ctx) {
				running = "running"
			}
			fmt.Printf("tmux '%s': %s\n", br.cfg.TmuxSession, running)
			fmt.Printf("Sync: %s\n", br.gate.State())

			sid := br.resolver.Current()
			if sid == "" {
				fmt.Println("Session: none")
				return nil
			}
			fmt.Printf("Session: %s\n", sid)
			if chatID, ok := br.bindings.ChatFor(sid); ok {
				fmt.Printf("Bound to chat: %d\n", chatID)
			} else {
				fmt.Println("Not bound to any chat")
			}
			return nil
		},
	}
}
