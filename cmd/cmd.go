package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realmkeeper-backend/internal/cache"
	"realmkeeper-backend/internal/config"
	"realmkeeper-backend/internal/handlers"
	"realmkeeper-backend/internal/media"
	"realmkeeper-backend/internal/metrics"
	"realmkeeper-backend/internal/repository"
	"realmkeeper-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var memory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			Run(configFile, memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep catalogue data in process memory instead of PostgreSQL")
	return cmd
}

// stores are the persistence backends behind the services
type stores struct {
	locations services.LocationStore
	treasures services.TreasureStore
	tags      services.TagStore
	media     interface {
		services.MediaStore
		media.MetadataStore
	}
}

func Run(configPath string, memory bool) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if memory {
		cfg.Database.InMemory = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()
	checks := map[string]handlers.Pinger{}

	// Connect to database
	var st stores
	if cfg.Database.InMemory {
		log.Warn().Msg("Using in-memory repositories; data is lost on exit")
		st = stores{
			locations: repository.NewInMemoryLocationRepository(),
			treasures: repository.NewInMemoryTreasureRepository(),
			tags:      repository.NewInMemoryTagRepository(),
			media:     repository.NewInMemoryMediaRepository(),
		}
	} else {
		db, err := connectDatabase(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		log.Info().Msg("Database connection established")

		checks["postgres"] = handlers.PingFunc(db.Ping)
		st = stores{
			locations: repository.NewLocationRepository(db),
			treasures: repository.NewTreasureRepository(db),
			tags:      repository.NewTagRepository(db),
			media:     repository.NewMediaRepository(db),
		}
	}

	// Query cache
	var queryCache cache.Cache = cache.NewMemory(cfg.Cache.TTL)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid redis url")
		}
		client := redis.NewClient(opts)
		defer client.Close()

		redisCache := cache.NewRedis(client, cfg.Cache.TTL)
		if err := redisCache.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		log.Info().Msg("Redis connection established")

		checks["redis"] = redisCache
		queryCache = redisCache
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics()
	if err := m.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	// Media bucket
	objects, err := media.NewS3Store(ctx, media.StoreConfig{
		Region:        cfg.Storage.Region,
		Bucket:        cfg.Storage.Bucket,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Endpoint:      cfg.Storage.Endpoint,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		UsePathStyle:  cfg.Storage.UsePathStyle,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create media store")
	}
	uploader := media.NewUploader(media.NewBimgCompressor(), objects, st.media, media.UploaderConfig{
		MaxAttempts: cfg.Media.MaxAttempts,
		Steps:       compressionSteps(cfg.Media.Steps),
		BackoffBase: cfg.Media.BackoffBase,
		BackoffMax:  cfg.Media.BackoffMax,
		Metrics:     m,
	})

	// Initialize services
	wsHub := services.NewWSHub()
	opts := services.Options{
		Cache:     queryCache,
		Notifier:  wsHub,
		Metrics:   m,
		MinRadius: cfg.Geo.MinRadius,
		MaxRadius: cfg.Geo.MaxRadius,
	}
	maxUpload := int64(cfg.Storage.MaxUploadMB) * 1024 * 1024
	mediaService := services.NewMediaService(st.media, objects, uploader, st.locations, st.treasures, maxUpload, opts)
	opts.Media = mediaService

	authService := services.NewAuthService(cfg.JWT.Secret)
	realmService := services.NewRealmService(st.locations, opts)
	nookService := services.NewNookService(st.locations, st.treasures, opts)
	treasureService := services.NewTreasureService(st.treasures, st.locations, opts)
	tagService := services.NewTagService(st.tags, st.locations, st.treasures, opts)

	// Setup router
	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:       authService,
		Realms:     handlers.NewRealmHandler(realmService, tagService, mediaService, m),
		Nooks:      handlers.NewNookHandler(nookService, tagService, mediaService),
		Treasures:  handlers.NewTreasureHandler(treasureService, tagService, mediaService),
		Tags:       handlers.NewTagHandler(tagService),
		Media:      handlers.NewMediaHandler(mediaService),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, authService),
		Health:     handlers.NewHealthHandler(checks),
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RequestLog: true,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// connectDatabase opens and pings the PostgreSQL pool
func connectDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func compressionSteps(steps []config.CompressionStep) []media.Step {
	out := make([]media.Step, len(steps))
	for i, s := range steps {
		out[i] = media.Step{Quality: s.Quality, MaxDimension: s.MaxDimension}
	}
	return out
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
