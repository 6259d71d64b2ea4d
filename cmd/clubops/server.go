package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/clubhouse247/clubops/internal/actions"
	"github.com/clubhouse247/clubops/internal/api"
	"github.com/clubhouse247/clubops/internal/classify"
	"github.com/clubhouse247/clubops/internal/config"
	"github.com/clubhouse247/clubops/internal/enrich"
	"github.com/clubhouse247/clubops/internal/knowledge"
	"github.com/clubhouse247/clubops/internal/llm"
	"github.com/clubhouse247/clubops/internal/notify"
	"github.com/clubhouse247/clubops/internal/sop"
	"github.com/clubhouse247/clubops/internal/storage"
	"github.com/clubhouse247/clubops/internal/ticket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clubops server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running clubops server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "clubops.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "clubops version %s\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(os.Getenv("CLUBOPS_LOG_LEVEL"), "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to double-start: probe the health endpoint first.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("clubops is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("clubops is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	base := knowledge.Default()
	classifier := classify.New(base)
	tickets := ticket.NewEngine(store, base)

	sops, err := sop.LoadDir(cfg.SOP.Dir)
	if err != nil {
		return fmt.Errorf("loading sop library: %w", err)
	}

	var enricher *enrich.Enricher
	if cfg.LLM.Enabled {
		enricher = enrich.NewEnricher(llm.New(cfg.LLM.APIKey, cfg.LLM.Model), cfg.LLM.Model)
		slog.Info("llm analysis enabled", "model", cfg.LLM.Model)
	}

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	var poster notify.SlackPoster
	if cfg.Slack.BotToken != "" {
		poster = slack.New(cfg.Slack.BotToken)
	}
	dispatcher := notify.NewDispatcher(base, mailer, poster, cfg.Slack.ChannelID)

	deps := api.Deps{
		Store:      store,
		Classifier: classifier,
		Tickets:    tickets,
		Notifier:   dispatcher,
		SOPs:       sops,
		Actions:    actions.NewRegistry(tickets),
		Frontier:   api.NewFrontier(),
		Facility:   cfg.Facility.Name,
	}
	if enricher != nil {
		deps.Enricher = enricher
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// Nightly prediction job.
	if cfg.Predict.Enabled && enricher != nil {
		sched := cron.New()
		if _, err := sched.AddFunc(cfg.Predict.Schedule, func() {
			if err := runPredictionJob(ctx, store, enricher); err != nil {
				slog.Error("prediction job failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling prediction job: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		slog.Info("prediction job scheduled", "schedule", cfg.Predict.Schedule)
	}

	// MCP server over stdio for AI assistant integration.
	mcpSrv := api.NewMCPServer(deps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "clubops listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// predictor abstracts the prediction call for tests.
type predictor interface {
	Predict(ctx context.Context, recent []enrich.IssueSummary) enrich.Prediction
}

// runPredictionJob feeds the latest incidents to the model and stores the
// resulting prediction.
func runPredictionJob(ctx context.Context, store *storage.Store, p predictor) error {
	incidents, err := store.RecentIncidents(10)
	if err != nil {
		return fmt.Errorf("loading incidents: %w", err)
	}

	recent := make([]enrich.IssueSummary, len(incidents))
	for i, inc := range incidents {
		recent[i] = enrich.IssueSummary{
			Description: inc.Description,
			Category:    inc.Category,
			CreatedAt:   inc.CreatedAt,
		}
	}

	prediction := p.Predict(ctx, recent)
	summary, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("marshalling prediction: %w", err)
	}

	if err := store.SavePrediction(storage.PredictionRecord{
		Status:      prediction.Status,
		Summary:     string(summary),
		GeneratedAt: prediction.GeneratedAt,
	}); err != nil {
		return fmt.Errorf("storing prediction: %w", err)
	}

	slog.Info("prediction stored", "status", prediction.Status, "predictions", len(prediction.Predictions))
	return nil
}

func stopServer() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("clubops is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop clubops (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to clubops (PID %d)", pid)
	return nil
}
