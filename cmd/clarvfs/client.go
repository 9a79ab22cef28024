package main

import (
	"fmt"
	"io"
	"os"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/config"
	"github.com/CageChen/clarvfs/internal/vfs"
)

var existsCmd = &cobra.Command{
	Use:   "exists <location>",
	Short: "Report whether a file exists",
	Args:  cobra.ExactArgs(1),
	RunE: withAccessor(func(cmd *cobra.Command, a *vfs.Accessor, args []string) error {
		loc, err := parseLocation(args[0])
		if err != nil {
			return err
		}
		exists, err := a.FileExists(cmd.Context(), loc)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), exists)
		return nil
	}),
}

var catCmd = &cobra.Command{
	Use:   "cat <manifest>",
	Short: "Print a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: withAccessor(func(cmd *cobra.Command, a *vfs.Accessor, args []string) error {
		loc, err := parseLocation(args[0])
		if err != nil {
			return err
		}
		_, content, err := a.ReadManifestContent(cmd.Context(), loc)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	}),
}

var contractCmd = &cobra.Command{
	Use:   "contract <manifest> <relative-path>",
	Short: "Print a contract resolved relative to its manifest",
	Args:  cobra.ExactArgs(2),
	RunE: withAccessor(func(cmd *cobra.Command, a *vfs.Accessor, args []string) error {
		manifest, err := parseLocation(args[0])
		if err != nil {
			return err
		}
		resolved, content, err := a.ReadContractContent(cmd.Context(), manifest, args[1])
		if err != nil {
			return err
		}
		cmd.PrintErrln("#", resolved.String())
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	}),
}

var writeCmd = &cobra.Command{
	Use:   "write <manifest> <relative-path> [source]",
	Short: "Write a file relative to a manifest, reading content from source or stdin",
	Args:  cobra.RangeArgs(2, 3),
	RunE: withAccessor(func(cmd *cobra.Command, a *vfs.Accessor, args []string) error {
		manifest, err := parseLocation(args[0])
		if err != nil {
			return err
		}

		var content []byte
		if len(args) == 3 && args[2] != "-" {
			content, err = os.ReadFile(args[2])
		} else {
			content, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return errors.WrapIf(err, "read content")
		}

		return a.WriteFile(cmd.Context(), manifest, args[1], content)
	}),
}

type accessorFunc func(cmd *cobra.Command, a *vfs.Accessor, args []string) error

// withAccessor loads the configuration and hands fn a ready accessor.
func withAccessor(fn accessorFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !debug && cfg.Log.Level == config.DefaultConfig().Log.Level {
			cfg.Log.Level = "warn"
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		a, cleanup, err := newAccessor(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := fn(cmd, a, args); err != nil {
			logger.Debug("operation failed", zap.Error(err))
			return err
		}
		return nil
	}
}
