package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/voxacaptions/caption-pipeline/internal/batch"
	"github.com/voxacaptions/caption-pipeline/internal/cleanup"
	"github.com/voxacaptions/caption-pipeline/internal/config"
	"github.com/voxacaptions/caption-pipeline/internal/handlers"
	"github.com/voxacaptions/caption-pipeline/internal/queue"
	"github.com/voxacaptions/caption-pipeline/internal/storage"
	"github.com/voxacaptions/caption-pipeline/internal/transcription"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	log.Println("Initializing components...")

	// Engine discovery runs once here. Without a valid engine no request
	// can succeed, so this failure is fatal before any batch begins.
	enginePath, err := cfg.LocateEngine()
	if err != nil {
		log.Fatalf("Failed to locate recognition engine: %v", err)
	}
	log.Printf("Recognition engine: %s", enginePath)

	invoker, err := transcription.NewInvoker(enginePath)
	if err != nil {
		log.Fatalf("Failed to initialize engine invoker: %v", err)
	}

	normalizer := transcription.NewNormalizer(cfg.Converter.FFmpegPath, cfg.Storage.TempDir)
	job := transcription.NewJob(cfg, normalizer, invoker)

	// Caption store
	store := storage.NewCaptionStore(cfg.Storage.OutputDir)

	// Google Drive client (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Captions will only be saved locally")
			driveClient = nil
		} else {
			log.Println("Google Drive integration enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	// Database
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Event bus and batch worker
	bus := batch.NewEventBus(2000)
	orchestrator := batch.NewOrchestrator(job, store, bus)
	worker := queue.NewWorker(orchestrator, store, driveClient, db)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker.Start(workerCtx)

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	batchHandler := handlers.NewBatchHandler(worker, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB)
	progressHandler := handlers.NewProgressHandler(bus)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/batch", batchHandler.Handle)

	// WebSocket route
	app.Get("/ws/progress", websocket.New(progressHandler.Handle))

	// Incremental event poll for clients without WebSocket support
	app.Get("/events", func(c *fiber.Ctx) error {
		since, _ := strconv.ParseInt(c.Query("since", "0"), 10, 64)
		return c.JSON(fiber.Map{
			"events": bus.Since(since),
		})
	})

	// Get outcome metadata
	app.Get("/transcripts", func(c *fiber.Ctx) error {
		limit := 50 // Default limit
		outcomes, err := db.ListOutcomes(limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(outcomes)
	})

	app.Get("/batches/:id", func(c *fiber.Ctx) error {
		outcomes, err := db.ListBatchOutcomes(c.Params("id"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(outcomes)
	})

	// Get caption file content
	app.Get("/transcripts/:id/captions", func(c *fiber.Ctx) error {
		jobID := c.Params("id")

		outcome, err := db.GetOutcome(jobID)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "Transcript not found"})
		}

		// Prefer the archived copy; the sibling file may live in temp.
		path, _ := outcome["archive_path"].(string)
		if path == "" {
			path, _ = outcome["output_path"].(string)
		}
		if path == "" {
			return c.Status(404).JSON(fiber.Map{"error": "Caption file path not found"})
		}

		captions, err := storage.ReadCaptionFile(path)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Failed to read caption file"})
		}

		return c.JSON(captions)
	})

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /batch       - Submit audio files for captioning")
	log.Println("   GET  /ws/progress - WebSocket progress events")
	log.Println("   GET  /events      - Poll progress events")
	log.Println("   GET  /transcripts - List recent outcomes")
	log.Println("   GET  /transcripts/:id/captions - Get caption JSON")
	log.Println("   GET  /batches/:id - List outcomes of one batch")
	log.Println("   GET  /logs        - View server logs")
	log.Println("   GET  /health      - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		stopWorker()
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
