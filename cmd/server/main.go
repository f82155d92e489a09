package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/elecmate/winback-service/internal/campaign"
	"github.com/elecmate/winback-service/internal/config"
	"github.com/elecmate/winback-service/internal/database"
	"github.com/elecmate/winback-service/internal/email"
	"github.com/elecmate/winback-service/internal/logger"
	"github.com/elecmate/winback-service/internal/migrator"
	"github.com/elecmate/winback-service/internal/nats"
	"github.com/elecmate/winback-service/internal/publisher"
	"github.com/elecmate/winback-service/internal/repository"
	"github.com/elecmate/winback-service/internal/web"
	"github.com/elecmate/winback-service/internal/web/handlers"
	"github.com/elecmate/winback-service/migrations"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting winback campaign service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	mig, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init migrator")
	}
	if err := mig.Up(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// 5. Connect to NATS
	nc, err := nats.New(ctx, cfg.NatsURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
	} else {
		defer nc.Close()
	}

	var pub campaign.EventPublisher
	if nc != nil {
		if err := nc.EnsureStream(ctx, "WINBACK", []string{"winback.>"}); err != nil {
			log.Warn().Err(err).Msg("failed to ensure winback stream")
		}
		pub = publisher.NewNATSPublisher(nc.Conn)
	}

	// 6. Initialize repositories
	profilesRepo := repository.NewProfilesRepository(db.Pool, log)
	identityRepo := repository.NewIdentityRepository(db.Pool)
	emailLogRepo := repository.NewEmailLogRepository(db.GORM)
	if err := emailLogRepo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate email log")
	}

	// 7. Initialize email provider client
	sender := email.NewClient(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.EmailFrom, log)

	// 8. Initialize campaign service
	svc := campaign.NewService(campaign.ServiceConfig{
		Profiles: profilesRepo,
		Identity: identityRepo,
		Audit:    emailLogRepo,
		Sender:   sender,
		Events:   pub,
		Pricing: campaign.Pricing{
			MonthlyPrice:    cfg.PriceMonthly,
			YearlyPrice:     cfg.PriceYearly,
			StandardMonthly: cfg.PriceStandardMonthly,
			StandardYearly:  cfg.PriceStandardYearly,
		},
		Role:         cfg.TargetRole,
		SendDelay:    time.Duration(cfg.SendDelayMS) * time.Millisecond,
		HistoryLimit: cfg.HistoryLimit,
		Log:          log,
	})

	// 9. Initialize web handlers
	auth := handlers.NewAuthenticator(identityRepo, profilesRepo)
	winback := handlers.NewWinbackHandler(svc)

	// 10. Initialize server
	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, auth, winback)

	log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// 11. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
