package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/opsguard/errorpilot/internal/classifier"
	"github.com/opsguard/errorpilot/internal/codehost"
	"github.com/opsguard/errorpilot/internal/config"
	"github.com/opsguard/errorpilot/internal/dedup"
	"github.com/opsguard/errorpilot/internal/history"
	"github.com/opsguard/errorpilot/internal/httpapi"
	"github.com/opsguard/errorpilot/internal/mcpserver"
	"github.com/opsguard/errorpilot/internal/model"
	"github.com/opsguard/errorpilot/internal/ratelimit"
	"github.com/opsguard/errorpilot/internal/repairclient"
	"github.com/opsguard/errorpilot/internal/router"
	"github.com/opsguard/errorpilot/internal/store/sqlite"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "errorpilotd",
		Short: "Decides whether and how to escalate runtime errors to an automated repair service",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server (stdio) and an optional local HTTP listener",
		RunE:  runServe,
	}
	serveCmd.Flags().String("http-addr", "", "if set, also serve POST /route and GET /status on this address")

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Read a single error report as JSON from stdin and print the routing result to stdout",
		RunE:  runRoute,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print current quota usage and cooldown/active-session counts",
		RunE:  runStatus,
	}

	config.RegisterFlags(serveCmd)
	config.RegisterFlags(routeCmd)
	config.RegisterFlags(statusCmd)

	// viper keeps one flag binding per key, so the calls above leave every
	// key bound to statusCmd; rebind to the flags of the command being run.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
	}

	rootCmd.AddCommand(serveCmd, routeCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildRouter wires every collaborator described in the resolved Config
// into a *router.Router. classifier.New and codehost.New both degrade to
// fail-open/empty-list behavior when their keys are unset, so the router
// is always fully constructed regardless of which integrations are
// configured. History defaults to the in-memory store; if cfg.DatabasePath
// is set, it is replaced with a sqlite-backed store so cooldown and
// active-session state survive a process restart.
func buildRouter(cfg config.Config, logger *zap.Logger) (*router.Router, error) {
	r := &router.Router{
		MinSeverity:             model.Severity(cfg.MinSeverity),
		DisableRouting:          cfg.DisableAutoReview,
		DefaultRepo:             cfg.DefaultRepo,
		HistoryMaxAttemptsShown: cfg.HistoryMaxAttemptsShown,
		RateLimiter:             ratelimit.New(cfg.MaxRequestsPerHour),
		DedupStore:              dedup.New(cfg.DedupWindow),
		History:                 history.New(cfg.PRMergeCooldown),
		Classifier:              classifier.New(cfg.AnthropicAPIKey, cfg.AnthropicModel),
		CodeHost:                codehost.New(cfg.CodeHostToken, cfg.CodeHostBaseURL),
		Repair:                  repairclient.New(cfg.RepairAPIKey, cfg.RepairBaseURL),
		Logger:                  logger,
	}

	if cfg.DatabasePath != "" {
		store, err := sqlite.Open(cfg.DatabasePath, cfg.PRMergeCooldown)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history store at %q: %w", cfg.DatabasePath, err)
		}
		r.History = store
	}

	return r, nil
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	r, err := buildRouter(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Printf("received %s, shutting down...", sig)
		cancel()
	}()

	httpAddr, _ := cmd.Flags().GetString("http-addr")
	var httpSrv *httpapi.Server
	if httpAddr != "" {
		httpSrv = httpapi.New(r, httpAddr)
		go func() {
			if err := httpSrv.Start(); err != nil {
				log.Printf("http api error: %v", err)
			}
		}()
	}

	mcpErr := make(chan error, 1)
	go func() {
		mcpErr <- mcpserver.Run(ctx, r)
	}()

	select {
	case <-ctx.Done():
	case err := <-mcpErr:
		if err != nil {
			log.Printf("mcp server error: %v", err)
		}
		cancel()
	}

	if httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http api shutdown: %v", err)
		}
	}

	return nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	r, err := buildRouter(cfg, logger)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read error report from stdin: %w", err)
	}

	var e model.ErrorReport
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("failed to parse error report: %w", err)
	}

	result := r.Route(context.Background(), e)

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal routing result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	r, err := buildRouter(cfg, logger)
	if err != nil {
		return err
	}
	snap := r.Status()

	fmt.Printf("Quota remaining:  %d\n", snap.QuotaRemaining)
	fmt.Printf("In cooldown:      %d\n", snap.InCooldown)
	fmt.Printf("Active sessions:  %d\n", snap.ActiveSessions)
	return nil
}
