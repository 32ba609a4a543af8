package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nstehr/mudlark/mudlark-core/agent"
	"github.com/nstehr/mudlark/mudlark-core/ipc"
	"github.com/nstehr/mudlark/mudlark-core/model"
	"github.com/nstehr/mudlark/mudlark-core/profile"
	"github.com/nstehr/mudlark/mudlark-core/rules"
	"github.com/nstehr/mudlark/mudlark-core/store"
)

const banner = `
┳┳┓┳┳┳┓┓ ┏┓┳┓┓┏┓
┃┃┃┃┃┃┃┃ ┣┫┣┫┃┫ 
┛ ┗┗┛┻┛┗┛┛┗┛┗┛┗┛

Pattern-Driven MUD Automation`

var (
	profilePath string
	debug       bool
)

func main() {
	root := &cobra.Command{
		Use:           "mudlark",
		Short:         "Headless MUD client core: aliases, triggers and scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(debug)
		},
	}
	root.PersistentFlags().StringVarP(&profilePath, "profile", "p", "", "profile YAML (default $"+profile.EnvProfile+")")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(consoleCmd(), replayCmd(), checkCmd(), speedwalkCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	slog.SetDefault(slog.New(handler))
}

func loadProfile() (string, model.Profile, error) {
	path, err := profile.Resolve(profilePath)
	if err != nil {
		return "", model.Profile{}, err
	}
	p, err := profile.Load(path)
	if err != nil {
		return "", model.Profile{}, err
	}
	return path, p, nil
}

// session loads the profile and builds everything an agent needs.
func session(ctx context.Context, rw ipc.Stream, varsPath string) (*agent.Agent, string, func() error, error) {
	path, p, err := loadProfile()
	if err != nil {
		return nil, "", nil, err
	}
	engine, err := rules.NewEngine(rules.WithEventDepth(p.Settings.EffectiveEventDepth()))
	if err != nil {
		return nil, "", nil, err
	}
	for _, problem := range profile.Validate(engine, p) {
		slog.Warn("profile problem", "problem", problem.String())
	}

	var st store.Store = store.NewMemory()
	if varsPath != "" {
		b, err := store.OpenBolt(varsPath)
		if err != nil {
			return nil, "", nil, err
		}
		st = b
	}
	if err := st.Seed(p.Variables); err != nil {
		st.Close()
		return nil, "", nil, err
	}

	conn := ipc.NewConnection(rw, nil)
	a := agent.New(ctx, conn, engine, st, p)
	a.Notifier = rules.NotifierFunc(func() error {
		_, err := os.Stderr.WriteString("\a")
		return err
	})
	a.Reload = func() (model.Profile, error) { return profile.Load(path) }
	a.Register()

	slog.Info("profile loaded", "name", p.Name, "path", path,
		"aliases", len(p.Aliases), "triggers", len(p.Triggers), "scripts", len(p.Scripts))
	return a, path, st.Close, nil
}

func consoleCmd() *cobra.Command {
	var varsPath string
	var watch bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run an interactive session on stdin/stdout",
		Long: "Lines starting with \"> \" are user input, every other line is server output.\n" +
			"Commands are written to stdout; client messages start with \"# \".",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stderr, banner)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, path, closeStore, err := session(ctx, ipc.Stream{Reader: os.Stdin, Writer: os.Stdout}, varsPath)
			if err != nil {
				return err
			}
			defer closeStore()

			g, gctx := errgroup.WithContext(ctx)
			if watch {
				w, err := profile.NewWatcher(path, a.Swap)
				if err != nil {
					return err
				}
				g.Go(func() error { return w.Run(gctx) })
			}

			// Reads from a terminal cannot be interrupted, so the read loop
			// runs outside the group and a signal simply stops waiting for it.
			readDone := make(chan error, 1)
			go func() { readDone <- a.Conn.ReadLoop() }()

			g.Go(func() error {
				select {
				case err := <-readDone:
					a.Wait()
					stop()
					return err
				case <-gctx.Done():
					a.Wait()
					return nil
				}
			})

			err = g.Wait()
			slog.Info("shutting down")
			return err
		},
	}
	cmd.Flags().StringVar(&varsPath, "vars", "", "persist variables in this bbolt file")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the profile when the file changes")
	return cmd
}

func replayCmd() *cobra.Command {
	var varsPath string
	cmd := &cobra.Command{
		Use:   "replay TRANSCRIPT",
		Short: "Feed a transcript through the profile and print what would be sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open transcript: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, _, closeStore, err := session(ctx, ipc.Stream{Reader: f, Writer: os.Stdout}, varsPath)
			if err != nil {
				f.Close()
				return err
			}
			defer closeStore()

			err = a.Conn.ReadLoop()
			a.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&varsPath, "vars", "", "read and persist variables in this bbolt file")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate patterns, variable names and scripts in a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, p, err := loadProfile()
			if err != nil {
				return err
			}
			engine, err := rules.NewEngine(rules.WithEventDepth(p.Settings.EffectiveEventDepth()))
			if err != nil {
				return err
			}
			problems := profile.Validate(engine, p)
			for _, problem := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), problem.String())
			}
			if len(problems) > 0 {
				return fmt.Errorf("%s: %d problems", path, len(problems))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d aliases, %d triggers, %d scripts)\n",
				path, len(p.Aliases), len(p.Triggers), len(p.Scripts))
			return nil
		},
	}
}

func speedwalkCmd() *cobra.Command {
	var back bool
	var delay float64
	cmd := &cobra.Command{
		Use:   "speedwalk SHORTHAND",
		Short: "Expand a speedwalk string such as 2e,w,ne",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := time.Duration(delay * float64(time.Second))
			for _, a := range rules.Steps(args[0], back, d) {
				fmt.Fprintln(cmd.OutOrStdout(), a.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&back, "back", false, "walk the path in reverse")
	cmd.Flags().Float64Var(&delay, "delay", 0, "seconds between steps")
	return cmd
}
