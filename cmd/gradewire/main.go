// Gradewire — assignment-submission evaluation pipeline. One process runs
// either the HTTP API or a single stage worker, selected by --role; every
// role shares the same Postgres schema and blob store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gradewire/gradewire/pkg/api"
	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/chain"
	"github.com/gradewire/gradewire/pkg/database"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/handlers"
	"github.com/gradewire/gradewire/pkg/llm"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/telegram"
	"github.com/gradewire/gradewire/pkg/telemetry"
	"github.com/gradewire/gradewire/pkg/version"
	"github.com/gradewire/gradewire/pkg/worker"
)

const (
	roleAPI            = "api"
	roleIngestTelegram = "worker-ingest-telegram"
	roleNormalize      = "worker-normalize"
	roleEvaluate       = "worker-evaluate"
	roleDeliver        = "worker-deliver"
	roleAll            = "all"
)

var supportedRoles = []string{roleAPI, roleIngestTelegram, roleNormalize, roleEvaluate, roleDeliver, roleAll}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolveWorkerID builds a lease-owner identity unique per process.
func resolveWorkerID(role string) string {
	host := os.Getenv("HOSTNAME")
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		} else {
			host = "local"
		}
	}
	return fmt.Sprintf("%s-%s-%s", role, host, uuid.NewString()[:8])
}

func stageForRole(role string) (domain.Stage, bool) {
	switch role {
	case roleIngestTelegram:
		return domain.StageTelegramIngest, true
	case roleNormalize:
		return domain.StageNormalize, true
	case roleEvaluate:
		return domain.StageEvaluate, true
	case roleDeliver:
		return domain.StageDeliver, true
	}
	return "", false
}

func main() {
	role := flag.String("role", getEnv("GRADEWIRE_ROLE", roleAPI),
		"Process role: "+strings.Join(supportedRoles, ", "))
	dryRun := flag.Bool("dry-run-startup", false,
		"Validate configuration and wiring, then exit")
	envFile := flag.String("env-file", getEnv("ENV_FILE", ".env"),
		"Path to .env file")
	flag.Parse()

	stage, isWorker := stageForRole(*role)
	if *role != roleAPI && *role != roleAll && !isWorker {
		fmt.Fprintf(os.Stderr, "unsupported role %q: must be one of %s\n",
			*role, strings.Join(supportedRoles, ", "))
		os.Exit(2)
	}

	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envFile, "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		"app", version.AppName, "role", *role)
	slog.SetDefault(logger)

	slog.Info("Starting gradewire", "version", version.GitCommit, "role", *role)

	ctx := context.Background()

	if err := telemetry.Init(ctx, version.AppName, version.GitCommit); err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Telemetry shutdown error", "error", err)
		}
	}()

	// Database: connect and apply migrations.
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient.DB(), logger)

	// Blob store for raw payloads, normalized artifacts, and exports.
	storageRoot := getEnv("ARTIFACT_STORAGE_ROOT", "./data/artifacts")
	storage, err := artifact.NewFilesystemStorage(storageRoot)
	if err != nil {
		slog.Error("Failed to initialize artifact storage", "root", storageRoot, "error", err)
		os.Exit(1)
	}
	policy, err := artifact.CompatPolicyFromEnv()
	if err != nil {
		slog.Error("Invalid artifact compat policy", "error", err)
		os.Exit(1)
	}
	artifacts, err := artifact.NewRepository(storage, policy)
	if err != nil {
		slog.Error("Failed to initialize artifact repository", "error", err)
		os.Exit(1)
	}
	slog.Info("Artifact repository initialized", "root", storageRoot, "compat_policy", policy)

	// Assemble the per-role pieces: an HTTP server, stage runners, or both.
	var httpServer *api.Server
	var runners []*worker.Runner

	workerStages := []domain.Stage{}
	switch *role {
	case roleAPI:
		// no workers
	case roleAll:
		workerStages = domain.AllStages
	default:
		workerStages = []domain.Stage{stage}
	}

	if *role == roleAPI || *role == roleAll {
		httpServer = api.NewServer(dbClient, st, artifacts, logger)
	}

	for _, ws := range workerStages {
		runner, workerID, err := buildStageRunner(ws, st, artifacts, logger)
		if err != nil {
			slog.Error("Failed to build stage worker", "stage", ws, "error", err)
			os.Exit(1)
		}
		slog.Info("Stage worker wired", "stage", ws, "worker_id", workerID)
		runners = append(runners, runner)
		if httpServer != nil {
			httpServer.AttachRunner(string(ws), runner)
		}
	}

	if *dryRun {
		slog.Info("Dry-run startup complete", "role", *role)
		return
	}

	runCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	for _, r := range runners {
		r.Start(runCtx)
	}

	errCh := make(chan error, 1)
	if httpServer != nil {
		go func() {
			addr := ":" + getEnv("HTTP_PORT", "8080")
			slog.Info("HTTP server listening", "addr", addr)
			if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server error", "error", err)
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Workers first so in-flight claims finalize before connections drain.
	cancelWorkers()
	for _, r := range runners {
		r.Stop()
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}
	slog.Info("Shutdown complete")
}

// buildStageRunner wires one stage's handler, loop, and runner.
func buildStageRunner(stage domain.Stage, st *store.Store, artifacts *artifact.Repository, logger *slog.Logger) (*worker.Runner, string, error) {
	cfg, err := worker.LoadConfigFromEnv()
	if err != nil {
		return nil, "", err
	}

	deps, err := buildHandlerDeps(stage, st, artifacts, logger)
	if err != nil {
		return nil, "", err
	}

	var handler worker.Handler
	switch stage {
	case domain.StageTelegramIngest:
		handler = handlers.NewTelegramIngest(deps)
	case domain.StageNormalize:
		handler = handlers.NewNormalize(deps)
	case domain.StageEvaluate:
		handler = handlers.NewEvaluate(deps)
	case domain.StageDeliver:
		handler = handlers.NewDeliver(deps)
	default:
		return nil, "", fmt.Errorf("no handler for stage %q", stage)
	}

	workerID := resolveWorkerID(string(stage))
	loop, err := worker.NewLoop(workerID, st, handler, cfg, logger)
	if err != nil {
		return nil, "", err
	}
	return worker.NewRunner(loop, cfg, logger), workerID, nil
}

// buildHandlerDeps wires the external clients each stage needs. Stages that
// never touch a dependency leave it nil.
func buildHandlerDeps(stage domain.Stage, st *store.Store, artifacts *artifact.Repository, logger *slog.Logger) (*handlers.Deps, error) {
	deps := &handlers.Deps{
		Records:   st,
		Artifacts: artifacts,
		Logger:    logger,
	}

	if stage == domain.StageTelegramIngest || stage == domain.StageDeliver {
		token := os.Getenv("TELEGRAM_BOT_TOKEN")
		if token == "" {
			slog.Warn("TELEGRAM_BOT_TOKEN not set, using in-process telegram stub")
			deps.Telegram = telegram.NewStubClient()
		} else {
			bot, err := telegram.NewBotClient(token, st.TelegramChatID)
			if err != nil {
				return nil, err
			}
			deps.Telegram = bot
		}
	}

	if stage == domain.StageEvaluate || stage == domain.StageDeliver {
		chainPath := getEnv("CHAIN_SPEC_PATH", "configs/evaluation_chain.yaml")
		spec, err := chain.Load(chainPath)
		if err != nil {
			return nil, fmt.Errorf("load chain spec %s: %w", chainPath, err)
		}
		deps.Chain = spec
		slog.Info("Evaluation chain loaded", "path", chainPath,
			"chain_version", spec.ChainVersion, "model", spec.Model)
	}

	if stage == domain.StageEvaluate {
		if getEnv("LLM_PROVIDER", "anthropic") == "stub" {
			slog.Warn("Using stub LLM client")
			deps.LLM = llm.NewStubClient()
		} else {
			client, err := llm.NewAnthropicClient()
			if err != nil {
				return nil, err
			}
			deps.LLM = client
		}
	}

	return deps, nil
}
