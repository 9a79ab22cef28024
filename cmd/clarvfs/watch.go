package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/location"
	"github.com/CageChen/clarvfs/internal/wsbridge"
)

var watchCmd = &cobra.Command{
	Use:   "watch <manifest>",
	Short: "Print changes the host reports below a manifest's directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.HostURL == "" {
		return errors.New("watch needs a websocket host, set --host or host_url")
	}

	manifest, err := parseLocation(args[0])
	if err != nil {
		return err
	}
	dir, err := manifest.Parent()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := wsbridge.Dial(ctx, cfg.HostURL, nil, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	out := cmd.OutOrStdout()
	client.OnNotification(func(msg wsbridge.Message) {
		if change, ok := changeBelow(dir, msg); ok {
			fmt.Fprintf(out, "%-7s %s\n", change.Event, change.Path)
		}
	})
	logger.Info("watching for changes", zap.Stringer("dir", dir), zap.String("host", cfg.HostURL))

	select {
	case <-client.Done():
		return errors.New("host closed the connection")
	case <-ctx.Done():
		return nil
	}
}

// changeBelow decodes a didChange notification and reports whether it
// concerns a file inside dir.
func changeBelow(dir location.Location, msg wsbridge.Message) (wsbridge.Change, bool) {
	var change wsbridge.Change
	if msg.Action != wsbridge.ActionDidChange {
		return change, false
	}
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		return change, false
	}
	loc, err := location.Parse(change.Path)
	if err != nil {
		return change, false
	}
	return change, dir.Contains(loc)
}
