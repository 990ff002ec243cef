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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/application"
	"github.com/bryanwahyu/cerviscan/internal/application/access"
	"github.com/bryanwahyu/cerviscan/internal/application/assist"
	appreview "github.com/bryanwahyu/cerviscan/internal/application/review"
	appscreening "github.com/bryanwahyu/cerviscan/internal/application/screening"
	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
	"github.com/bryanwahyu/cerviscan/internal/infra/ai/openai"
	"github.com/bryanwahyu/cerviscan/internal/infra/classifier"
	"github.com/bryanwahyu/cerviscan/internal/infra/events/kafka"
	"github.com/bryanwahyu/cerviscan/internal/infra/httpserver"
	"github.com/bryanwahyu/cerviscan/internal/infra/storage"
	"github.com/bryanwahyu/cerviscan/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStores(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		// init minio
		blobs, err := storage.New(ctx, storage.Options{
			Endpoint:      cfg.Minio.Endpoint,
			Region:        cfg.Minio.Region,
			Bucket:        cfg.Minio.BucketName,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			UseSSL:        cfg.Minio.UseSSL,
			PublicBaseURL: cfg.Minio.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		st.health["blob"] = middleware.CheckFunc(blobs.Ping)

		var events domain.EventPublisher = kafka.Noop{}
		if len(cfg.Kafka.Brokers) > 0 {
			pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log.Named("events"))
			defer func() { _ = pub.Close() }()
			events = pub
		}

		clock := application.SystemClock{}
		screenings := &appscreening.Service{
			Repo:       st.records,
			Blobs:      blobs,
			Classifier: classifier.New(cfg.Classifier.URL, cfg.Classifier.Timeout, log.Named("classifier")),
			Failures:   st.failures,
			Events:     events,
			Clock:      clock,
			Limits: appscreening.Limits{
				MaxImageBytes: cfg.Screening.MaxImageBytes,
				AllowedTypes:  cfg.Screening.AllowedTypes,
			},
			Logger: log.Named("screening"),
		}
		reviews := &appreview.Service{
			Repo:             st.records,
			Assignments:      st.assignments,
			Events:           events,
			Clock:            clock,
			Logger:           log.Named("review"),
			AllowPlaceholder: cfg.Screening.AllowPlaceholder,
			PlaceholderRisk:  domain.RiskLevel(cfg.Screening.PlaceholderRisk),
		}
		var drafts *assist.Service
		if cfg.OpenAI.APIKey != "" {
			drafts = assist.NewService(openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model))
		}

		deps := httpserver.Deps{
			Screenings:  screenings,
			Reviews:     reviews,
			Access:      access.Policy{Assignments: st.assignments},
			Assignments: st.assignments,
			Assist:      drafts,
			Logger:      log.Named("http"),
			HMACKey:     []byte(cfg.Auth.HMACSecret),
			CORSOrigins: cfg.Server.CORSOrigins,
			Health:      st.health,
		}
		deps.RateLimit.Capacity = cfg.RateLimit.Capacity
		deps.RateLimit.RefillRate = cfg.RateLimit.RefillRate

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      httpserver.NewRouter(deps),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server listening", zap.String("addr", addr), zap.String("driver", cfg.Database.Driver))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
		}

		// graceful shutdown
		log.Info("shutting down server...")
		sdCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sdCtx); err != nil {
			log.Warn("shutdown error", zap.Error(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
