package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nhle/circuit-janitor/internal/app"
	"github.com/nhle/circuit-janitor/internal/credential"
	"github.com/nhle/circuit-janitor/internal/metrics"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/source/email"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process mail and run the sweeps every check interval",
	RunE:  runRun,
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run a single cycle: every provider's mail, then the sweeps",
	RunE:  runProcess,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, log, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := mailClient(a.Config)
	if err != nil {
		return err
	}
	if created, err := client.VerifyMailboxes(ctx); err != nil {
		return err
	} else if len(created) > 0 {
		log.Info("created mailboxes", "mailboxes", created)
	}

	if addr := a.Config.Metrics.Addr; addr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		srv, err := serveMetrics(addr, log)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("janitor started",
		"version", version,
		"providers", a.Registry.Names(),
		"interval", a.Config.Lifecycle.CheckInterval)
	return a.Poller(client).Run(ctx)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := mailClient(a.Config)
	if err != nil {
		return err
	}

	poller := a.Poller(client)
	cycleErr := poller.Cycle(ctx)

	rows := [][]string{}
	for _, s := range poller.Statuses() {
		errText := ""
		if s.Error != nil {
			errText = s.Error.Error()
		}
		rows = append(rows, []string{s.Provider, s.State.String(), fmt.Sprint(s.Processed), fmt.Sprint(s.Failed), errText})
	}
	printTable([]string{"Provider", "State", "Processed", "Failed", "Error"}, rows)
	return cycleErr
}

// mailClient builds the IMAP client, reading the password from the keyring
// when the config has none.
func mailClient(cfg *model.AppConfig) (*email.IMAPClient, error) {
	var secrets app.Secrets
	if cfg.Mail.Password == "" {
		s, err := credential.Open()
		if err != nil {
			return nil, err
		}
		secrets = s
	}
	return app.MailClient(cfg, secrets)
}

func serveMetrics(addr string, log *slog.Logger) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", listener.Addr().String())
	return srv, nil
}
