// Command server runs a local minechat-compatible feed for trying out the
// listener. Lines typed on stdin are broadcast to every connected listener;
// the line "/drop" disconnects them all.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj/minechat/logger"
	"github.com/pankaj/minechat/server"
)

const dropCommand = "/drop"

var (
	host     string
	port     int
	tick     time.Duration
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Run a local chat feed for the listener",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runServer,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "127.0.0.1", "host to listen on")
	rootCmd.Flags().IntVar(&port, "port", 5000, "port to listen on")
	rootCmd.Flags().DurationVar(&tick, "tick", 0, "also publish a numbered message at this interval (0 disables)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := logger.Configure(logLevel, ""); err != nil {
		return err
	}

	srv := server.New()
	if err := srv.Listen(net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	logger.Info("Chat feed listening", "addr", srv.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pumpLines(ctx, srv, readLines(cmd.InOrStdin()))
	})
	if tick > 0 {
		g.Go(func() error {
			return publishTicks(ctx, srv, tick)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down...")
		srv.Shutdown()
		return nil
	})
	return g.Wait()
}

// readLines scans r on its own goroutine, since a blocked stdin read
// cannot be interrupted. The channel is closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func pumpLines(ctx context.Context, srv *server.ChatServer, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// Stdin closed; keep serving ticks until interrupted.
				return nil
			}
			if line == dropCommand {
				logger.Info("Dropping all listeners", "count", srv.Clients())
				srv.DisconnectAll()
				continue
			}
			srv.Publish(line)
		}
	}
}

func publishTicks(ctx context.Context, srv *server.ChatServer, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			srv.Publish(fmt.Sprintf("tick %d", n))
		}
	}
}
