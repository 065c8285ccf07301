package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/omzoxima/adminpannelbackend/catalog"
	"github.com/omzoxima/adminpannelbackend/config"
	"github.com/omzoxima/adminpannelbackend/history"
	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/manifest"
	"github.com/omzoxima/adminpannelbackend/pipeline"
	"github.com/omzoxima/adminpannelbackend/ratelimit"
	"github.com/omzoxima/adminpannelbackend/routes"
	"github.com/omzoxima/adminpannelbackend/security"
	"github.com/omzoxima/adminpannelbackend/storage"
	"github.com/omzoxima/adminpannelbackend/transcoder"
)

func main() {
	if err := logger.Init(config.GetLogFile(), true); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()
	logger.Info("Starting stream server initialization")

	if err := config.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(config.GetDataDir(), 0o755); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}

	// Catalog store
	logger.Debug("Opening catalog database")
	cat, err := catalog.Open(config.GetCatalogDBPath())
	if err != nil {
		logger.Fatalf("Failed to open catalog store: %v", err)
	}
	defer cat.Close()
	logger.Info("Catalog database initialized successfully")

	// Ingestion history store
	logger.Debug("Opening history database")
	hist, err := history.Open(config.GetHistoryDBPath())
	if err != nil {
		logger.Fatalf("Failed to open history store: %v", err)
	}
	defer hist.Close()
	logger.Info("History database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openObjectStore(ctx)
	logger.Infof("Object store ready (backend=%s)", config.GetStorageBackend())

	// Transcoding service and job runner
	svc, err := transcoder.NewGCPService(ctx, config.GetGCPProject(), config.GetGCPLocation())
	if err != nil {
		logger.Fatalf("Failed to create transcoder service: %v", err)
	}
	runner := &transcoder.Runner{
		Service:      svc,
		PollInterval: config.GetTranscodePollInterval(),
		Timeout:      config.GetTranscodeTimeout(),
		InputScheme:  storage.SchemeOf(store),
	}

	// Token vault and device guard
	encKey, err := config.GetEncryptionKey()
	if err != nil {
		logger.Fatalf("Invalid encryption key: %v", err)
	}
	signSecret, err := config.GetTokenSigningSecret()
	if err != nil {
		logger.Fatalf("Invalid signing secret: %v", err)
	}
	salt, err := config.GetDeviceIDSalt()
	if err != nil {
		logger.Fatalf("Invalid device salt: %v", err)
	}
	guard := security.NewDeviceGuard(salt)
	vault, err := security.NewVault(encKey, signSecret, guard)
	if err != nil {
		logger.Fatalf("Failed to create token vault: %v", err)
	}

	pipe := &pipeline.Pipeline{
		Catalog:          cat,
		Objects:          store,
		Runner:           runner,
		Rewriter:         &manifest.Rewriter{Objects: store},
		History:          hist,
		MaxVideos:        config.GetMaxVideosPerRequest(),
		PlaybackTTL:      config.GetSignedReadTTL(),
		DetachFromCaller: config.DetachJobsFromCaller(),
	}

	// Cleanup routine for old ingestion records (runs every 24 hours)
	logger.Info("Starting history cleanup routine")
	go cleanupRoutine(ctx, hist)

	logger.Info("Registering HTTP routes")
	mux := http.NewServeMux()
	routes.Register(mux, &routes.Deps{
		Catalog:         cat,
		History:         hist,
		Objects:         store,
		Pipeline:        pipe,
		Vault:           vault,
		Guard:           guard,
		SignedReadTTL:   config.GetSignedReadTTL(),
		SignedUploadTTL: config.GetSignedUploadTTL(),
		PlaybackTTL:     config.GetPlaybackTokenTTL(),
	})

	limiter := ratelimit.New(config.GetRateLimitWindow(), config.GetRateLimitMax(), config.GetRateLimitBlockFactor())
	handler := routes.SecurityHeaders(limiter.Middleware(guard, mux))

	addr := ":" + config.GetListenPort()
	logger.Infof("Stream server starting on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatalf("Server failed to start: %v", err)
	}
}

// openObjectStore builds the configured object store backend.
func openObjectStore(ctx context.Context) storage.Store {
	switch config.GetStorageBackend() {
	case "s3":
		return storage.NewS3(config.GetS3Region(), config.GetS3Bucket(),
			config.GetS3AccessKey(), config.GetS3SecretKey())
	default:
		var creds []byte
		if path := config.GetGCSCredentialsFile(); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Fatalf("Failed to read GCS credentials file: %v", err)
			}
			creds = data
		}
		store, err := storage.NewGCS(ctx, config.GetGCSBucket(), creds)
		if err != nil {
			logger.Fatalf("Failed to create GCS store: %v", err)
		}
		return store
	}
}

// cleanupRoutine periodically prunes old ingestion history records.
func cleanupRoutine(ctx context.Context, hist *history.Store) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			maxAge := 30 * 24 * time.Hour
			logger.Debugf("Cleaning up history records older than %v", maxAge)
			if err := hist.CleanupOldRecords(maxAge); err != nil {
				logger.Errorf("Failed to cleanup old history records: %v", err)
			}
		}
	}
}
