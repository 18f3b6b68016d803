package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/scholar-ai-backend/config"
	"github.com/vnkhanh/scholar-ai-backend/controllers"
	"github.com/vnkhanh/scholar-ai-backend/logger"
	"github.com/vnkhanh/scholar-ai-backend/middleware"
	"github.com/vnkhanh/scholar-ai-backend/ratelimit"
	"github.com/vnkhanh/scholar-ai-backend/routes"
	"github.com/vnkhanh/scholar-ai-backend/services"
	"github.com/vnkhanh/scholar-ai-backend/storage"
	"github.com/vnkhanh/scholar-ai-backend/store"
	"github.com/vnkhanh/scholar-ai-backend/ws"
)

const (
	janitorInterval = 6 * time.Hour
	tempFileMaxAge  = time.Hour
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guides, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open guide store", "driver", cfg.StoreDriver, "error", err)
	}

	archive, err := openArchive(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open source archive", "driver", cfg.ArchiveDriver, "error", err)
	}

	var transcriber services.Transcriber
	if cfg.SpeechEnabled {
		var staging *storage.GCSStore
		if cfg.GCSBucket != "" {
			staging, err = storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.CredentialsFile)
			if err != nil {
				log.Fatal("failed to open transcription staging bucket", "bucket", cfg.GCSBucket, "error", err)
			}
			defer staging.Close()
		}
		st, err := services.NewSpeechTranscriber(ctx, cfg.CredentialsFile, cfg.SpeechLanguage, staging, log)
		if err != nil {
			log.Fatal("failed to create speech client", "error", err)
		}
		defer st.Close()
		transcriber = st
	}

	var synth services.Synthesizer
	if cfg.TTSEnabled {
		ss, err := services.NewSpeechSynthesizer(ctx, cfg.CredentialsFile, cfg.TTSVoice, cfg.TTSLanguage, log)
		if err != nil {
			log.Fatal("failed to create text-to-speech client", "error", err)
		}
		defer ss.Close()
		synth = ss
	}

	var limiter middleware.Limiter
	if cfg.UploadRateLimit > 0 {
		l, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "scholar:ratelimit", cfg.UploadRateLimit, cfg.UploadRateWindow)
		if err != nil {
			log.Fatal("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		defer l.Close()
		limiter = l
	}

	hub := ws.NewHub(log)
	generator := services.NewGeminiGenerator(services.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GenerationTimeout,
	}, log)
	pipeline := services.NewPipeline(services.NewExtractor(transcriber, log), generator, guides, archive, hub, log)

	handler := controllers.NewHandler(controllers.Deps{
		Store:          guides,
		Uploader:       pipeline,
		Generator:      generator,
		Exporter:       services.NewExporter(synth),
		Hub:            hub,
		Log:            log,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	r := routes.SetupRouter(handler, hub, routes.Options{
		CORSOrigins:   cfg.CORSOrigins,
		UploadLimiter: limiter,
		Log:           log,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("server running", "port", cfg.Port, "store", cfg.StoreDriver, "archive", cfg.ArchiveDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config, log *logger.Logger) (store.GuideStore, error) {
	if cfg.StoreDriver == config.StoreFile {
		fs, err := store.NewFileStore(cfg.DatabaseDir, log)
		if err != nil {
			return nil, err
		}
		fs.StartJanitor(ctx, janitorInterval, tempFileMaxAge)
		return fs, nil
	}

	db, err := config.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := config.Migrate(db); err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}

// openArchive returns nil when archiving is disabled.
func openArchive(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	switch cfg.ArchiveDriver {
	case config.ArchiveSupabase:
		return storage.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Bucket), nil
	case config.ArchiveMinio:
		return storage.NewMinioStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
	case config.ArchiveGCS:
		return storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.CredentialsFile)
	default:
		return nil, nil
	}
}
