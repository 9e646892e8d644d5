// Package cli implements the assetresolve command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	resolver "github.com/goliatone/go-resolver"
	"github.com/goliatone/go-resolver/pkg/assetfs"
	"github.com/goliatone/go-resolver/pkg/state"
	"github.com/spf13/cobra"
)

// Options holds the persistent flags shared by every subcommand.
type Options struct {
	ConfigFile  string
	EnvFiles    []string
	MappingFile string
	SearchPaths []string
	StateDB     string
	Verbose     bool
	NoColor     bool

	// Storage replaces the local filesystem. Tests set it.
	Storage assetfs.Storage
	// Getenv replaces the dotenv-backed environment. Tests set it.
	Getenv func(string) string
}

// NewRootCommand builds the assetresolve command tree writing to out and
// errOut. Flags are parsed into opts; a nil opts starts empty.
func NewRootCommand(opts *Options, out, errOut io.Writer) *cobra.Command {
	if opts == nil {
		opts = &Options{}
	}
	root := &cobra.Command{
		Use:           "assetresolve",
		Short:         "Resolve asset identifiers against search paths and mapping files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML or TOML resolver configuration")
	flags.StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files consulted after the process environment (default .env)")
	flags.StringVarP(&opts.MappingFile, "mapping-file", "m", "", "mapping document backing the context")
	flags.StringArrayVarP(&opts.SearchPaths, "search-path", "s", nil, "custom search path, repeatable")
	flags.StringVar(&opts.StateDB, "state-db", "", "SQLite database restoring and capturing context pairs")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every resolver call to stderr")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newResolveCommand(opts),
		newIdentifierCommand(opts),
		newMappingCommand(opts),
		newWatchCommand(opts),
	)
	return root
}

// Execute runs the command line against the process arguments.
func Execute(ctx context.Context) int {
	root := NewRootCommand(nil, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		return 1
	}
	return 0
}

// session is the engine and bound context a subcommand runs against.
type session struct {
	engine *resolver.Engine
	rc     *resolver.ResolverContext
	store  *state.SQLiteStore
	ctx    context.Context
}

func (o *Options) open(ctx context.Context, errOut io.Writer) (*session, error) {
	if o.NoColor {
		color.NoColor = true
	}
	getenv := o.Getenv
	if getenv == nil {
		var err error
		if getenv, err = resolver.LoadDotenv(o.EnvFiles...); err != nil {
			return nil, err
		}
	}

	cfg := resolver.DefaultConfig()
	if o.ConfigFile != "" {
		loaded, err := resolver.LoadConfig(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg = cfg.ApplyEnv(getenv)
	if o.Verbose {
		cfg.LogCalls = true
	}

	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engineOpts := []resolver.Option{
		resolver.WithConfig(cfg),
		resolver.WithEnvironment(getenv),
		resolver.WithLogger(logger),
	}
	if o.Storage != nil {
		engineOpts = append(engineOpts, resolver.WithStorage(o.Storage))
	}
	engine, err := resolver.New(ctx, engineOpts...)
	if err != nil {
		return nil, err
	}

	s := &session{engine: engine, ctx: ctx}
	var contextOpts []resolver.ContextOption
	if o.MappingFile != "" {
		contextOpts = append(contextOpts, resolver.WithMappingFile(o.MappingFile))
	}
	if len(o.SearchPaths) > 0 {
		contextOpts = append(contextOpts, resolver.WithSearchPaths(o.SearchPaths...))
	}
	if o.StateDB != "" {
		store, err := state.NewSQLiteStore(o.StateDB)
		if err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
		s.store = store
		contextOpts = append(contextOpts, resolver.WithInitializeHook(state.Seeder{Store: store}))
	}
	if len(contextOpts) > 0 {
		rc, err := engine.NewContext(ctx, contextOpts...)
		if err != nil {
			s.close()
			return nil, err
		}
		s.rc = rc
		s.ctx = resolver.BindContext(ctx, rc)
	}
	return s, nil
}

// active is the context resolutions populate.
func (s *session) active() *resolver.ResolverContext {
	if s.rc != nil {
		return s.rc
	}
	return s.engine.CreateDefaultContext()
}

// capture persists the active context's pairs when a state db is open.
func (s *session) capture() error {
	if s.store == nil || s.active().MappingFilePath() == "" {
		return nil
	}
	_, err := state.Capture(s.ctx, s.store, "", s.active(), state.Meta{})
	return err
}

func (s *session) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}
