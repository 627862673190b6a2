// tripgraph is a conversational travel assistant: a supervisor routes
// each user message to a flight-search or tourism specialist, which may
// call the Amadeus flight APIs and answer in turn.
//
// Usage:
//
//	tripgraph chat                        # start a conversation
//	tripgraph chat --config config.yaml   # with a config file
//	tripgraph chat --thread <id>          # resume an existing thread
//	tripgraph version
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dmoura/tripgraph/amadeus"
	"github.com/dmoura/tripgraph/checkpoint"
	"github.com/dmoura/tripgraph/config"
	"github.com/dmoura/tripgraph/graph"
	"github.com/dmoura/tripgraph/internal/metrics"
	"github.com/dmoura/tripgraph/internal/telemetry"
	"github.com/dmoura/tripgraph/llm"
	"github.com/dmoura/tripgraph/tools"
	"github.com/dmoura/tripgraph/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	threadID := fs.String("thread", "", "Conversation thread id to resume")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting tripgraph",
		zap.String("version", Version),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		defer otelProviders.Shutdown(context.Background())
	}

	collector := metrics.NewCollector("tripgraph", prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	driver, store, err := buildDriver(cfg, logger, collector)
	if err != nil {
		logger.Fatal("failed to build dialog graph", zap.Error(err))
	}
	defer store.Close()

	thread := *threadID
	if thread == "" {
		thread = uuid.New().String()
	}
	fmt.Printf("tripgraph %s — thread %s (ctrl-d or ctrl-c to exit)\n", Version, thread)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		reply, err := driver.HandleUserInput(ctx, thread, input)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error("turn failed",
				zap.String("code", string(types.GetErrorCode(err))),
				zap.Error(err))
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("assistant> %s\n", reply)

		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("tripgraph stopped", zap.String("thread_id", thread))
}

// buildDriver wires provider, tools, checkpoint store and nodes together.
func buildDriver(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*graph.Driver, checkpoint.Store, error) {
	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	flights := amadeus.NewClient(amadeus.Config{
		BaseURL:           cfg.Amadeus.BaseURL,
		ClientID:          cfg.Amadeus.ClientID,
		ClientSecret:      cfg.Amadeus.ClientSecret,
		Timeout:           cfg.Amadeus.Timeout,
		MaxRetries:        cfg.Amadeus.MaxRetries,
		RequestsPerSecond: cfg.Amadeus.RequestsPerSecond,
	}, logger, amadeus.WithMetrics(collector))

	registry := tools.NewRegistry(logger)
	if err := tools.RegisterFlightTools(registry, flights); err != nil {
		return nil, nil, err
	}
	executor := tools.NewExecutor(registry, logger, tools.WithMetrics(collector))

	store, err := checkpoint.NewStore(context.Background(), cfg.Checkpoint)
	if err != nil {
		return nil, nil, err
	}

	nodes := graph.NewNodes(provider, registry, executor, logger,
		graph.WithTrimmer(llm.NewHistoryTrimmer(cfg.LLM.TokenBudget)),
		graph.WithNodeMetrics(collector),
	)
	driver := graph.NewDriver(nodes, store, logger,
		graph.WithDriverMetrics(collector),
		graph.WithCheckpointBackend(cfg.Checkpoint.Backend),
	)
	return driver, store, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener failed", zap.Error(err))
	}
}

func printVersion() {
	fmt.Printf("tripgraph %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`tripgraph - conversational travel assistant

Usage:
  tripgraph <command> [options]

Commands:
  chat      Start (or resume) a conversation on stdin/stdout
  version   Show version information
  help      Show this help message

Options for 'chat':
  --config <path>   Path to configuration file (YAML)
  --thread <id>     Conversation thread id to resume

Examples:
  tripgraph chat
  tripgraph chat --config /etc/tripgraph/config.yaml
  tripgraph chat --thread 6f1c9c1e-8a7b-4d8e-9f2a-31c07a9f3b55`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		// Logs go to stderr so they never interleave with conversation
		// output on stdout.
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
