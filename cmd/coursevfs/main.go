// Package main provides the coursevfs command. It serves the sandboxed course
// workspace to an editor front end over JSON lines and offers a few direct
// subcommands for inspecting it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Cyclone1070/coursevfs/internal/bridge"
	"github.com/Cyclone1070/coursevfs/internal/config"
	"github.com/Cyclone1070/coursevfs/internal/fsops"
	"github.com/Cyclone1070/coursevfs/internal/gitops"
	"github.com/Cyclone1070/coursevfs/internal/platform"
	"github.com/Cyclone1070/coursevfs/internal/sandbox"
	"github.com/Cyclone1070/coursevfs/internal/tree"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Dependencies holds the components required to run the application.
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Sandbox *sandbox.Sandbox
	Files   *fsops.Service
	Tree    *tree.Serializer
	Git     *gitops.Service
}

// Dispatcher wires every service into a bridge dispatcher.
func (d *Dependencies) Dispatcher() *bridge.Dispatcher {
	return bridge.NewDispatcher(d.Logger,
		bridge.FileHandlers(d.Files),
		bridge.TreeHandlers(d.Tree),
		bridge.GitHandlers(d.Git),
	)
}

func newDependencies(cfg *config.Config, logOut io.Writer) *Dependencies {
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	sb := sandbox.New(cfg.SandboxContext())
	return &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Sandbox: sb,
		Files:   fsops.NewService(sb, platform.Host()),
		Tree:    tree.NewSerializer(sb, cfg.Tree.TextExtensions, logger),
		Git: gitops.NewService(sb, gitops.Options{
			RemoteName:    cfg.Git.RemoteName,
			DefaultBranch: cfg.Git.DefaultBranch,
			Logger:        logger,
		}),
	}
}

// globalFlags override values from the config file.
type globalFlags struct {
	baseDir  string
	testMode bool
	logLevel string
}

func (f *globalFlags) apply(cfg *config.Config) error {
	if f.testMode {
		cfg.Sandbox.Mode = config.ModeTest
	}
	if f.baseDir != "" {
		if cfg.Sandbox.Mode == config.ModeTest {
			cfg.Sandbox.TestBaseDir = f.baseDir
		} else {
			cfg.Sandbox.BaseDir = f.baseDir
		}
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg.Validate()
}

// loadConfig reads the config file and falls back to defaults when it is broken.
func loadConfig(stderr io.Writer) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Warning: failed to load config: %v\n", err)
		fmt.Fprintf(stderr, "Using default configuration.\n")
		cfg = config.DefaultConfig()
	}
	return cfg
}

func newRootCmd(load func(io.Writer) *config.Config) *cobra.Command {
	flags := &globalFlags{}
	var deps *Dependencies

	root := &cobra.Command{
		Use:           "coursevfs",
		Short:         "Sandboxed, git-backed course workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := load(cmd.ErrOrStderr())
			if err := flags.apply(cfg); err != nil {
				return err
			}
			deps = newDependencies(cfg, cmd.ErrOrStderr())
			if err := deps.Sandbox.Initialize(); err != nil {
				return fmt.Errorf("initializing sandbox: %w", err)
			}
			deps.Logger.Debug("sandbox ready", "base", deps.Sandbox.Base(), "mode", cfg.Sandbox.Mode)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.baseDir, "base-dir", "", "sandbox root directory (overrides config)")
	root.PersistentFlags().BoolVar(&flags.testMode, "test-mode", false, "use the test sandbox, which is cleared on start")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")

	get := func() *Dependencies { return deps }
	root.AddCommand(serveCmd(get), treeCmd(get), stashDiffCmd(get), cloneCmd(get))
	return root
}

func serveCmd(deps func() *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON requests on stdin, one JSON response per line on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps()
			dispatcher := d.Dispatcher()
			d.Logger.Info("serving", "ops", len(dispatcher.Ops()))
			return dispatcher.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func treeCmd(deps func() *Dependencies) *cobra.Command {
	var includeContent, raw bool
	cmd := &cobra.Command{
		Use:   "tree [root]",
		Short: "Print the folder structure of a sandbox directory as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "/"
			if len(args) == 1 {
				root = args[0]
			}
			nodes, err := deps().Tree.Serialize(cmd.Context(), root, root, includeContent, raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), nodes)
		},
	}
	cmd.Flags().BoolVar(&includeContent, "content", false, "include file content")
	cmd.Flags().BoolVar(&raw, "raw", false, "read every file as bytes")
	return cmd
}

func stashDiffCmd(deps func() *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "stash-diff <repo>",
		Short: "List files that differ between HEAD and the latest stash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := deps().Git.StashDiff(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func cloneCmd(deps func() *Dependencies) *cobra.Command {
	var (
		branch  string
		shallow bool
		creds   gitops.Credentials
	)
	cmd := &cobra.Command{
		Use:   "clone <repo> <url>",
		Short: "Clone a remote course repository into the sandbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Username != "" && creds.Password == "" {
				password, err := promptPassword(cmd.ErrOrStderr(), creds.Username)
				if err != nil {
					return err
				}
				creds.Password = password
			}
			if err := deps().Git.Clone(cmd.Context(), args[0], args[1], branch, shallow, creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cloned into %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch to clone (default: remote HEAD)")
	cmd.Flags().BoolVar(&shallow, "shallow", false, "fetch only the latest commit")
	cmd.Flags().StringVar(&creds.Username, "username", "", "HTTP username")
	cmd.Flags().StringVar(&creds.Password, "password", "", "HTTP password or token (prompted when omitted)")
	return cmd
}

// promptPassword reads a password without echo. Without a terminal the clone
// proceeds with an empty password.
func promptPassword(w io.Writer, username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(w, "Password for %s: ", username)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(loadConfig).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
