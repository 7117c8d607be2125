package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blavejr/finadvisor/config"
	"github.com/blavejr/finadvisor/controllers"
	"github.com/blavejr/finadvisor/evaluation"
	"github.com/blavejr/finadvisor/models"
	"github.com/blavejr/finadvisor/services"
	"github.com/blavejr/finadvisor/storage"
	"github.com/blavejr/finadvisor/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
)

const sessionMaxIdle = 24 * time.Hour

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		runServer()
	case "chat":
		runChat()
	case "evaluate":
		// usage: advisor evaluate [dataset.json|dataset.yaml]
		runEvaluation()
	case "index":
		// usage: advisor index [--rebuild]
		runIndex()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: advisor [serve|chat|evaluate [dataset]|index [--rebuild]]\n", cmd)
		os.Exit(2)
	}
}

func runServer() {
	cfg := config.Load()
	if err := cfg.RequireOpenRouterKey(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a failed load keeps the server up and shows the error page
	var advisor controllers.Advisor
	resources, loadErr := services.LoadResources(ctx, cfg)
	if loadErr != nil {
		log.Printf("Error while loading resources: %v", loadErr)
	} else {
		defer resources.Close()
		advisor = resources.Chain
		if cfg.WatchCSV {
			startWatcher(ctx, cfg, resources)
		}
	}

	sessions := storage.NewSessionStore(models.DefaultGenerationParams())
	go pruneSessions(ctx, sessions)

	openRouter := services.NewOpenRouterClient(cfg.OpenRouterURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	chat := services.NewChatService(openRouter)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	controllers.NewChatController(sessions, chat, advisor, loadErr).Register(router)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Financial advisor server starting on %s", addr)
	log.Printf("Chat model: %s via %s", cfg.OpenRouterModel, cfg.OpenRouterURL)
	log.Printf("Vector store: %s (%s)", cfg.VectorStore, cfg.Collection)
	log.Printf("Environment: %s", cfg.Environment)

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}

func startWatcher(ctx context.Context, cfg *config.Config, resources *services.Resources) {
	watcher, err := services.NewCSVWatcher(cfg.RawCSV)
	if err != nil {
		log.Printf("Warning: CSV watcher disabled: %v", err)
		return
	}
	err = watcher.Watch(ctx, func(ctx context.Context) {
		if _, err := resources.Reindex(ctx); err != nil {
			log.Printf("Reindex failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("Warning: CSV watcher disabled: %v", err)
		watcher.Stop()
		return
	}
	go func() {
		<-ctx.Done()
		watcher.Stop()
	}()
}

func pruneSessions(ctx context.Context, sessions *storage.SessionStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Prune(now, sessionMaxIdle); n > 0 {
				log.Printf("Pruned %d idle sessions", n)
			}
		}
	}
}

func runChat() {
	cfg := config.Load()
	if err := cfg.RequireOpenRouterKey(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// keep progress logs from drawing over the terminal UI
	logFile, err := os.OpenFile("advisor-chat.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openRouter := services.NewOpenRouterClient(cfg.OpenRouterURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	chat := services.NewChatService(openRouter)
	session := models.NewSession("terminal", models.DefaultGenerationParams())

	program := tea.NewProgram(tui.New(ctx, chat, session), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		log.Fatalf("Terminal chat failed: %v", err)
	}
}

func runEvaluation() {
	log.Println("Starting evaluation mode...")

	cfg := config.Load()
	ctx := context.Background()

	resources, err := services.LoadResources(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load resources: %v", err)
	}
	defer resources.Close()

	datasetPath := "evaluation/dataset.yaml"
	if len(os.Args) > 2 {
		datasetPath = os.Args[2]
	}
	questions, err := evaluation.LoadDataset(datasetPath)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Loaded %d questions from %s", len(questions), datasetPath)

	evaluator := evaluation.NewEvaluator(cfg, resources.Chain)

	report, err := evaluator.Evaluate(ctx, questions)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	evaluation.PrintSummary(report)

	outputFile := "evaluation/results/baseline.json"
	if err := evaluation.SaveReport(report, outputFile); err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}

	log.Printf("Evaluation complete! Results saved to %s", outputFile)
}

func runIndex() {
	cfg := config.Load()
	rebuild := len(os.Args) > 2 && os.Args[2] == "--rebuild"

	n, err := services.BuildIndex(context.Background(), cfg, rebuild)
	if err != nil {
		log.Fatalf("Indexing failed: %v", err)
	}
	log.Printf("Indexed %d chunks into %s (%s)", n, cfg.Collection, cfg.VectorStore)
}
