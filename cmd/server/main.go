package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"callscope/internal/api"
	"callscope/internal/config"
	"callscope/internal/db"
	"callscope/internal/insight"
	"callscope/internal/logger"
	"callscope/internal/pipeline"
	"callscope/internal/repository"
	"callscope/internal/scheduler"
	"callscope/internal/storage"
	"callscope/internal/transcription"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	var repo repository.RecordingRepository
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		defer conn.Close()
		repo = repository.NewPostgresRepository(conn)
		log.Info("database connection established")
	} else {
		repo = repository.NewMemoryRepository()
		log.Warn("DATABASE_URL not set, running without database (in-memory storage only)")
	}

	transcriber, err := transcription.CreateProvider(cfg.TranscribeProvider, cfg.TranscribeURL, cfg.TranscribeAPIKey)
	if err != nil {
		log.WithError(err).Fatal("failed to create transcription provider")
	}
	log.WithField("provider", transcriber.Name()).Info("transcription provider ready")

	insights, err := insight.CreateProvider(cfg.InsightProvider, cfg.AIServiceURL, cfg.AIServiceToken, cfg.OpenAIKey, cfg.OpenAIModel)
	if err != nil {
		log.WithError(err).Fatal("failed to create insight provider")
	}
	log.WithField("provider", insights.Name()).Info("insight provider ready")

	sched := scheduler.NewInProcess(log)
	defer sched.Drain()

	orch := pipeline.NewOrchestrator(repo, transcriber, insights, sched, log, pipeline.Config{
		PollInterval:    cfg.PollInterval,
		MaxPollRetries:  cfg.MaxPollRetries,
		FollowupChannel: cfg.FollowupChannel,
		FollowupTone:    cfg.FollowupTone,
	})

	audio := storage.NewAudioStore(cfg.UploadDir)

	r := gin.Default()

	// Add CORS middleware for mobile app
	r.Use(corsMiddleware())

	handler := api.NewHandler(repo, orch, audio, log)
	handler.RegisterRoutes(r)

	log.WithField("port", cfg.Port).Info("callscope backend running")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

// corsMiddleware adds CORS headers for mobile app
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
