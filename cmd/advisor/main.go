// Command advisor runs the interactive SRE advisor loop: it connects to a
// metrics backend and an LLM, then repeatedly takes an operator request and
// prints either a status report or an allocation recommendation.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/qos-advisor/advisor/internal/backend"
	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/llmclient"
	"github.com/qos-advisor/advisor/internal/pipeline"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	backendCmd := flag.String("backend-command",
		getEnv("BACKEND_COMMAND", ""),
		"Command to launch the metrics backend's MCP server over stdio")
	backendURL := flag.String("backend-url",
		getEnv("BACKEND_URL", ""),
		"HTTP URL of the metrics backend's MCP server (overrides -backend-command)")
	llmModel := flag.String("llm-model",
		getEnv("LLM_MODEL", ""),
		"LLM model name")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	settingsPath := filepath.Join(*configDir, "settings.yaml")
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", settingsPath, err)
	}
	if *backendCmd != "" {
		settings.BackendCommand = *backendCmd
	}
	if *backendURL != "" {
		settings.BackendURL = *backendURL
	}
	if *llmModel != "" {
		settings.LLMModel = *llmModel
	}

	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		log.Fatal("GROQ_API_KEY is required")
	}

	logger := slog.Default()

	transportCfg := backend.TransportConfig{Timeout: 30 * time.Second}
	switch {
	case settings.BackendURL != "":
		transportCfg.Type = backend.TransportHTTP
		transportCfg.URL = settings.BackendURL
	case settings.BackendCommand != "":
		transportCfg.Type = backend.TransportStdio
		transportCfg.Command = settings.BackendCommand
	default:
		log.Fatal("one of -backend-command, -backend-url, or a settings.yaml entry is required")
	}

	backendClient, err := backend.NewClient(transportCfg)
	if err != nil {
		log.Fatalf("failed to build metrics backend client: %v", err)
	}

	ctx := context.Background()
	if err := backendClient.Connect(ctx); err != nil {
		log.Fatalf("failed to connect to metrics backend: %v", err)
	}
	defer func() {
		if err := backendClient.Close(); err != nil {
			log.Printf("error closing metrics backend client: %v", err)
		}
	}()

	llmClient, err := llmclient.NewClient(apiKey, settings.LLMModel)
	if err != nil {
		log.Fatalf("failed to build LLM client: %v", err)
	}

	log.Println("qos-advisor ready")
	p := pipeline.New(backendClient, llmClient, logger)
	p.StabilityWindow = settings.StabilityWindow
	p.StabilityResolution = settings.StabilityResolution
	runLoop(ctx, p)
}

func runLoop(ctx context.Context, p *pipeline.Pipeline) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "q", "quit", "exit":
			return
		}

		requestID := uuid.New().String()
		reqLogger := slog.Default().With("request_id", requestID)
		reqLogger.Info("handling request", "text", line)

		fmt.Println("...classifying intent, gathering metrics...")
		result, err := p.Run(ctx, line)
		if err != nil {
			reqLogger.Error("request failed", "error", err)
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func printResult(result *pipeline.Result) {
	fmt.Println(strings.Repeat("=", 60))
	if result.Recommendation != nil {
		rec := result.Recommendation
		if rec.Empty {
			fmt.Println(rec.Advice)
			fmt.Println(strings.Repeat("=", 60))
			return
		}
		fmt.Printf("strategy: %s\n\n", rec.Strategy)
		fmt.Println(rec.Advice)
		fmt.Println()
		for _, r := range rec.Ranked {
			fmt.Printf("%-12s score=%.3f risks=%v\n", r.Node, r.Score, r.Risks)
		}
	} else {
		fmt.Println(result.Report)
	}
	fmt.Println(strings.Repeat("=", 60))
}
