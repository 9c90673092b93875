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

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"

	"github.com/Match-Score-project/Match-Score/cmd/buildCFG"
	"github.com/Match-Score-project/Match-Score/internal/api/api"
	rabbitReader "github.com/Match-Score-project/Match-Score/internal/consumerWorker"
	"github.com/Match-Score-project/Match-Score/internal/handler"
	"github.com/Match-Score-project/Match-Score/internal/identity"
	"github.com/Match-Score-project/Match-Score/internal/mailer"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/notify"
	"github.com/Match-Score-project/Match-Score/internal/presence"
	"github.com/Match-Score-project/Match-Score/internal/rabbit"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/service"
)

type imageStore interface {
	media.Store
	media.Uploader
}

func main() {
	zlog.Init()
	log := zlog.Logger
	log.Info().Msg("MatchScore starting")

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	storeCfg, err := buildCFG.BuildStoreConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build store config")
	}
	store, err := openStore(startCtx, cfg, storeCfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	repository, err := repo.NewRepository(store, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}

	mediaCfg, err := buildCFG.BuildMediaConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build media config")
	}
	var images imageStore = media.NewInline(mediaCfg.MaxBytes)
	if mediaCfg.Driver == buildCFG.MediaS3 {
		client, err := media.NewS3Client(startCtx, mediaCfg.S3.Region, mediaCfg.S3.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create S3 client")
		}
		images = media.NewS3Store(client, s3.NewPresignClient(client), mediaCfg.S3, &log)
	}

	mail := mailer.New(buildCFG.BuildMailerConfig(cfg), &log)
	if !mail.Enabled() {
		log.Warn().Msg("smtp.host not set, e-mails are only logged")
	}

	authCfg, err := buildCFG.BuildAuthConfig(cfg, serverCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build auth config")
	}
	auth, err := identity.New(repository, images, mail, authCfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize identity service")
	}

	tracker := presence.NewTracker()
	realtime := presence.NewServer(tracker, auth.AuthenticateHeader, &log)
	realtime.Start()

	regCfg, err := buildCFG.BuildRegistrationConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build registration config")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	var (
		publisher notify.Publisher
		reader    *rabbitReader.Reader
		inline    *notify.Inline
	)
	emailDelay := regCfg.EmailDelay
	if rabbitCfg, ok := buildCFG.BuildRabbitConfig(cfg, &log); ok {
		emailDelay = effectiveEmailDelay(rabbitCfg, regCfg.EmailDelay, &log)
		rmq, err := rabbit.NewRabbit(rabbitCfg)
		if err != nil {
			log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rmq.Close()
		publisher = rmq
		reader = rabbitReader.NewReader(rmq, repository, mail, tracker)
		reader.Start(workerCtx)
	} else {
		inlineReader := rabbitReader.NewReader(nil, repository, mail, tracker)
		inline = notify.NewInline(inlineReader.Handle, &log)
		publisher = inline
	}
	notifier := notify.NewNotifier(realtime, publisher, int(emailDelay.Seconds()), &log)

	svc, err := service.New(service.Deps{
		Repo:     repository,
		Log:      &log,
		Notifier: notifier,
		Presence: tracker,
		Media:    images,
		Uploader: images,
		Guard:    regCfg.Guard,
		Location: serverCfg.Location,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize service")
	}

	h := handler.New(svc, auth, &log)
	h.CookieSecure = serverCfg.CookieSecure
	app := api.NewRouters(&api.Routers{
		Handler:      h,
		Gate:         auth.Gate(),
		Realtime:     realtime.Handler(),
		Mode:         serverCfg.Mode,
		AllowOrigins: cfg.GetStringSlice("server.allow_origins"),
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}
	if err := realtime.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close realtime server")
	}

	if inline != nil {
		if err := inline.Drain(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("pending notifications not delivered before shutdown")
		}
	}
	cancelWorkers()
	if reader != nil {
		reader.Stop()
	}
	if err := resetStore(store, storeCfg, &log); err != nil {
		log.Error().Err(err).Msg("failed to reset store")
	}
	log.Info().Msg("Shutdown complete")
}

// effectiveEmailDelay is the delay the broker will actually apply: a plain
// exchange delivers immediately whatever delay is requested.
func effectiveEmailDelay(rc rabbit.Config, delay time.Duration, log *zerolog.Logger) time.Duration {
	if delay > 0 && !rc.Delayed {
		log.Warn().Dur("email_delay", delay).Msg("rabbitmq.delayed is false, registration.email_delay is ignored")
		return 0
	}
	return delay
}
