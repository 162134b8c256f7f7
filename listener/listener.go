// Package listener wires the history store, console and reconnecting
// supervisor into a runnable chat listener.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pankaj/minechat/client"
	"github.com/pankaj/minechat/config"
	"github.com/pankaj/minechat/console"
	"github.com/pankaj/minechat/history"
	"github.com/pankaj/minechat/logger"
	"github.com/pankaj/minechat/protocol"
	"github.com/pankaj/minechat/supervisor"
)

// Run listens until ctx is cancelled, writing chat lines to out and to the
// history file. It returns nil on a clean shutdown and an error wrapping
// history.ErrStorageUnavailable if history cannot be written.
//
// The history file is opened before any connection attempt, so a bad
// history path fails fast.
func Run(ctx context.Context, cfg config.Config, out io.Writer, opts ...supervisor.Option) (err error) {
	var storeOpts []history.Option
	if cfg.StampHistory {
		storeOpts = append(storeOpts, history.WithTimestamps(protocol.TimestampLayout))
	}
	store, err := history.Open(cfg.HistoryPath, storeOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("Failed to close history", "error", closeErr)
			err = errors.Join(err, closeErr)
		}
	}()

	printer := console.New(out, protocol.TimestampLayout)
	if err := replay(out, cfg.HistoryPath, cfg.Replay); err != nil {
		logger.Warn("Skipping history replay", "error", err)
	}

	dialer := supervisor.TCPDialer{
		Addr:    cfg.Addr(),
		Timeout: cfg.ConnectTimeout,
		Options: []client.Option{client.WithReadTimeout(cfg.ReadTimeout)},
	}
	opts = append([]supervisor.Option{supervisor.WithBackoff(cfg.BackoffBase, cfg.BackoffMax)}, opts...)
	sup := supervisor.New(dialer, store, printer, opts...)

	logger.Info("Listening", "addr", cfg.Addr(), "history", store.Path())
	if err := sup.Run(ctx); err != nil {
		return err
	}

	if err := printer.Notice("Listener stopped."); err != nil {
		logger.Warn("Failed to print notice", "error", err)
	}
	return nil
}

// replay prints the last n history records as they were stored.
func replay(out io.Writer, path string, n int) error {
	records, err := history.Tail(path, n)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := fmt.Fprintln(out, rec); err != nil {
			return fmt.Errorf("printing history: %w", err)
		}
	}
	return nil
}
