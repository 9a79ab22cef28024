package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/bridge"
	"github.com/CageChen/clarvfs/internal/config"
	"github.com/CageChen/clarvfs/internal/fs"
	"github.com/CageChen/clarvfs/internal/host"
	"github.com/CageChen/clarvfs/internal/location"
	"github.com/CageChen/clarvfs/internal/logging"
	"github.com/CageChen/clarvfs/internal/vfs"
	"github.com/CageChen/clarvfs/internal/wsbridge"
)

var (
	configPath string
	debug      bool

	flagRoot    string
	flagBackend string
	flagGitRef  string
	flagHost    string
	flagPort    int
	flagConfine bool
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "clarvfs",
	Short:         "Serve and access Clarinet projects through a virtual file system",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "configuration file (default ~/.config/clarvfs/config.yaml or ./clarvfs.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagRoot, "root", "", "project directory served by the host")
	pf.StringVar(&flagBackend, "backend", "", "storage backend: local, memory or git")
	pf.StringVar(&flagGitRef, "git-ref", "", "serve files from this git ref (read-only)")
	pf.StringVar(&flagHost, "host", "", "websocket host URL, e.g. ws://localhost:8080/api/vfs; empty uses the local backend")
	pf.IntVar(&flagPort, "port", 0, "port the host listens on")
	pf.BoolVar(&flagConfine, "confine", true, "refuse relative paths that leave the manifest directory")
	pf.DurationVar(&flagTimeout, "timeout", 0, "per-request timeout, 0 waits forever")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(contractCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command and prints any error it returns.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}

// loadConfig reads the configuration and applies the flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Root = flagRoot
	}
	if flags.Changed("backend") {
		cfg.Backend = flagBackend
	}
	if flags.Changed("git-ref") {
		cfg.GitRef = flagGitRef
	}
	if flags.Changed("host") {
		cfg.HostURL = flagHost
	}
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("confine") {
		cfg.ConfineToProject = flagConfine
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = flagTimeout
	}
	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Development = cfg.Log.Development
	return logging.New(lc)
}

// newBackend builds the storage a host serves from.
func newBackend(cfg *config.Config) (fs.FileSystem, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return fs.NewLocalFS(cfg.Root), nil
	case config.BackendMemory:
		return fs.NewOverlayFS(cfg.Root), nil
	case config.BackendGit:
		ref := cfg.GitRef
		if ref == "" {
			ref = "HEAD"
		}
		return fs.NewGitFS(cfg.Root, ref), nil
	}
	return nil, errors.Errorf("unknown backend %q", cfg.Backend)
}

// newAccessor connects to the configured websocket host, or serves the
// backend in-process when no host URL is set. The returned function releases
// the connection.
func newAccessor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*vfs.Accessor, func(), error) {
	var (
		h       bridge.Host
		cleanup = func() {}
	)

	if cfg.HostURL != "" {
		client, err := wsbridge.Dial(ctx, cfg.HostURL, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		h = client
		cleanup = func() { _ = client.Close() }
	} else {
		backend, err := newBackend(cfg)
		if err != nil {
			return nil, nil, err
		}
		h = host.NewLocal(host.NewDispatcher(backend, logger))
	}

	a := vfs.New(h,
		vfs.WithLogger(logger),
		vfs.WithConfinement(cfg.ConfineToProject),
		vfs.WithTimeout(cfg.RequestTimeout),
	)
	return a, cleanup, nil
}

// parseLocation accepts a URL or a filesystem path; relative paths are taken
// from the working directory.
func parseLocation(arg string) (location.Location, error) {
	if strings.Contains(arg, "://") {
		return location.FromURL(arg)
	}
	if abs, err := filepath.Abs(arg); err == nil {
		arg = abs
	}
	return location.FromPath(arg)
}
