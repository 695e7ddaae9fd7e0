package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"receipttracker/internal/engine"
	"receipttracker/internal/pipeline"
	"receipttracker/internal/preprocess"
	"receipttracker/internal/record"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-tracker")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "receipt-tracker.db", "Database file path")
		storagePath = fs.StringLong("storage", "./receipts", "Storage directory path")
		probeTTL    = fs.DurationLong("probe-ttl", 30*time.Second, "How long a health probe result stays cached")
		lang        = fs.StringLong("lang", "en", "Default recognition language hint")

		deepseekURL = fs.StringLong("deepseek-url", "", "DeepSeek-OCR server base URL (e.g. http://localhost:8000)")
		olmocrURL   = fs.StringLong("olmocr-url", "", "olmOCR server base URL")
		easyocrURL  = fs.StringLong("easyocr-url", "", "EasyOCR server base URL")
		paddleURL   = fs.StringLong("paddle-url", "", "PaddleOCR server base URL")

		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")

		noTesseract    = fs.BoolLong("no-tesseract", "Disable the local Tesseract fallback engine")
		tesseractLangs = fs.StringLong("tesseract-langs", "eng", "Tesseract languages, '+'-separated (e.g. eng+deu)")

		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := record.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Build the engine cascade from whatever backends are configured.
	// Mild profiles for the vision-language models, which handle raw photos
	// well; an aggressive binarizing profile for Tesseract.
	vlmProfile := preprocess.Profile{MaxDim: 2048}
	textProfile := preprocess.Profile{MaxDim: 2048, Grayscale: true, Denoise: true, Contrast: true}
	tessProfile := preprocess.Profile{MaxDim: 2500, Grayscale: true, Denoise: true, Contrast: true, Binarize: true}

	var engines []engine.Engine

	if *deepseekURL != "" {
		engines = append(engines, engine.NewRemote(engine.Descriptor{
			ID:               "deepseek",
			Name:             "DeepSeek-OCR",
			Transport:        engine.TransportRemote,
			Structured:       true,
			Endpoint:         *deepseekURL,
			Language:         *lang,
			Profile:          vlmProfile,
			RecognizeTimeout: 120 * time.Second,
		}))
	}

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey != "" {
		slog.Info("Initializing Gemini engine...", "model", *geminiModel)
		g, err := engine.NewGemini(engine.Descriptor{
			ID:               "gemini",
			Name:             "Google Gemini",
			Transport:        engine.TransportRemote,
			Structured:       true,
			Language:         *lang,
			Profile:          vlmProfile,
			RecognizeTimeout: 120 * time.Second,
		}, apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		engines = append(engines, g)
	}

	if *olmocrURL != "" {
		engines = append(engines, engine.NewRemote(engine.Descriptor{
			ID:               "olmocr",
			Name:             "olmOCR",
			Transport:        engine.TransportRemote,
			Endpoint:         *olmocrURL,
			Language:         *lang,
			Profile:          vlmProfile,
			RecognizeTimeout: 120 * time.Second,
		}))
	}
	if *easyocrURL != "" {
		engines = append(engines, engine.NewRemote(engine.Descriptor{
			ID:        "easyocr",
			Name:      "EasyOCR",
			Transport: engine.TransportRemote,
			Endpoint:  *easyocrURL,
			Language:  *lang,
			Profile:   textProfile,
		}))
	}
	if *paddleURL != "" {
		engines = append(engines, engine.NewRemote(engine.Descriptor{
			ID:        "paddle",
			Name:      "PaddleOCR",
			Transport: engine.TransportRemote,
			Endpoint:  *paddleURL,
			Language:  *lang,
			Profile:   textProfile,
		}))
	}
	if !*noTesseract {
		engines = append(engines, engine.NewTesseract(engine.Descriptor{
			ID:        "tesseract",
			Name:      "Tesseract",
			Transport: engine.TransportLocal,
			Language:  *tesseractLangs,
			Profile:   tessProfile,
		}))
	}

	if len(engines) == 0 {
		slog.Error("No engines configured. Configure at least one backend URL, a Gemini key, or leave Tesseract enabled")
		os.Exit(1)
	}
	defer func() {
		for _, e := range engines {
			e.Close()
		}
	}()

	orchestrator := pipeline.New(engines, engine.NewProber(*probeTTL))
	for _, e := range orchestrator.Engines() {
		d := e.Descriptor()
		slog.Info("Engine configured", "id", d.ID, "transport", d.Transport, "structured", d.Structured)
	}

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := record.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	receiptService := record.NewService(db, orchestrator, store)

	// Initialize server
	basicAuth := record.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := record.NewServer(receiptService, orchestrator, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
