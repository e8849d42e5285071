package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	admissionHandler "memberdir/internal/admission/handler"
	admissionMetrics "memberdir/internal/admission/metrics"
	admissionService "memberdir/internal/admission/service"
	announcementHandler "memberdir/internal/announcement/handler"
	"memberdir/internal/announcement/recipients"
	announcementService "memberdir/internal/announcement/service"
	announcementStore "memberdir/internal/announcement/store"
	"memberdir/internal/audit"
	jwttoken "memberdir/internal/jwt_token"
	"memberdir/internal/member/classification"
	memberHandler "memberdir/internal/member/handler"
	memberMetrics "memberdir/internal/member/metrics"
	"memberdir/internal/member/roles"
	memberService "memberdir/internal/member/service"
	memberStore "memberdir/internal/member/store"
	"memberdir/internal/notify"
	"memberdir/internal/platform/config"
	"memberdir/internal/platform/httpserver"
	"memberdir/internal/platform/kafka"
	"memberdir/internal/platform/logger"
	"memberdir/internal/platform/metrics"
	"memberdir/internal/platform/postgres"
	"memberdir/internal/platform/redis"
)

// memberBackend is the member store surface shared by every service.
type memberBackend interface {
	memberService.Store
	admissionService.Store
	recipients.Directory
}

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal service packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		members       memberBackend
		announcements announcementService.Store
		db            *sql.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		members = memberStore.NewPostgres(db)
		announcements = announcementStore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		members = memberStore.NewInMemory()
		announcements = announcementStore.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	health := healthChecks(db)
	publisher, closeAudit, err := newAuditPublisher(ctx, cfg.Kafka, log, health)
	if err != nil {
		return err
	}
	defer closeAudit()

	var notifier notify.Notifier = notify.NewLog(log)
	if cfg.SMTP.Host != "" {
		notifier = notify.NewBreaker(notify.NewSMTP(cfg.SMTP), cfg.SMTP.BreakerThreshold, cfg.SMTP.BreakerCooldown)
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	resolverOpts := []roles.Option{roles.WithLogger(log)}
	if rdb != nil {
		defer rdb.Close()
		health["redis"] = rdb.Health
		resolverOpts = append(resolverOpts, roles.WithCache(rdb, cfg.RoleCacheTTL))
	}
	callers := roles.New(members, resolverOpts...)

	memberSvc := memberService.New(members,
		memberService.WithLogger(log),
		memberService.WithAuditPublisher(publisher),
		memberService.WithMetrics(memberMetrics.New(reg)),
		memberService.WithEditPolicy(classification.EditPolicy(cfg.EditPolicy)),
	)
	admissionSvc := admissionService.New(members, notifier, callers,
		admissionService.WithLogger(log),
		admissionService.WithAuditPublisher(publisher),
		admissionService.WithMetrics(admissionMetrics.New(reg)),
		admissionService.WithBatchConcurrency(cfg.AdmissionBatchConcurrency),
	)
	announcementSvc := announcementService.New(announcements, members, notifier,
		announcementService.WithLogger(log),
		announcementService.WithAuditPublisher(publisher),
	)

	router := newRouter(routerDeps{
		logger:   log,
		metrics:  metrics.New(reg),
		registry: reg,
		verifier: jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience),
		health:   health,
		handlers: []registrar{
			memberHandler.New(memberSvc, callers, log),
			admissionHandler.New(admissionSvc, callers, log),
			announcementHandler.New(announcementSvc, callers, log),
		},
	})

	srv := httpserver.New(cfg.Addr, router, httpserver.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting memberdir", "addr", cfg.Addr, "edit_policy", string(cfg.EditPolicy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newAuditPublisher streams audit events to Kafka when brokers are configured
// and keeps them in memory otherwise.
func newAuditPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, health map[string]healthCheck) (*audit.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		p := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithLogger(log))
		return p, func() {}, nil
	}
	producer, err := kafka.NewProducer(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
		producer.Close()
		return nil, nil, err
	}
	health["kafka"] = producer.Ping
	p := audit.NewPublisher(audit.NewKafkaSink(producer), audit.WithAsyncBuffer(1024), audit.WithLogger(log))
	return p, func() {
		_ = p.Close()
		producer.Close()
	}, nil
}
