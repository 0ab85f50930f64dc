package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	httpadp "library-backend/internal/adapter/http"
	"library-backend/internal/adapter/middleware"
	"library-backend/internal/adapter/notifier"
	"library-backend/internal/adapter/repository/mysql"
	"library-backend/internal/adapter/scheduler"
	"library-backend/internal/config"
	"library-backend/internal/domain/notification"
	"library-backend/internal/domain/uow"
	"library-backend/internal/infrastructure/cache"
	"library-backend/internal/infrastructure/db"
	"library-backend/internal/infrastructure/logger"
	loanuc "library-backend/internal/usecase/loan"
	"library-backend/internal/usecase/statistics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	gdb, err := db.OpenGorm(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	if cfg.DBDriver == config.DriverSQLite {
		if err := db.Migrate(gdb); err != nil {
			log.WithError(err).Fatal("migrate sqlite schema")
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		if rdb, err = cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
			log.WithError(err).Fatal("open redis")
		}
		defer rdb.Close()
	}

	repos := uow.Repos{
		Loans: mysql.NewLoanRepository(gdb),
		Books: mysql.NewBookRepository(gdb),
		Users: mysql.NewUserRepository(gdb),
	}

	var sink notification.Notifier = notifier.NewLog(log)
	if rdb != nil {
		sink = &notifier.Fallback{
			Primary:   notifier.NewRedisStream(rdb, cfg.NotifyStream),
			Secondary: sink,
			Log:       log,
		}
	}
	dispatcher := notifier.NewDispatcher(sink, log, cfg.NotifyQueueSize, 0)
	dispatcher.Start()

	ledger := loanuc.NewUsecase(mysql.NewGormUoW(gdb), repos,
		loanuc.WithLogger(log),
		loanuc.WithNotifier(dispatcher),
		loanuc.WithDailyRate(cfg.FineDailyRate),
		loanuc.WithTxRetry(cfg.TxMaxAttempts, cfg.TxBaseDelay),
	)
	stats := statistics.NewUsecase(repos.Loans,
		statistics.WithLogger(log),
		statistics.WithNotifier(dispatcher),
	)

	sweep, err := scheduler.NewOverdueSweep(cfg.OverdueCron, stats, log)
	if err != nil {
		log.WithError(err).Fatal("overdue sweep")
	}
	sweep.Start()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	stopSweeper := make(chan struct{})
	limiter.StartSweeper(time.Minute, stopSweeper)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Recover(), middleware.RequestLogger(log), middleware.Metrics())

	// limiter first: a 429 must not be cached as the idempotent result
	guard := []echo.MiddlewareFunc{limiter.Middleware()}
	if rdb != nil {
		guard = append(guard, middleware.NewIdempotency(rdb, cfg.IdempotencyTTL(), log).Middleware())
	}
	httpadp.Register(e,
		httpadp.NewHandler(),
		httpadp.NewLoanHandler(ledger, log),
		httpadp.NewStatisticsHandler(stats, log),
		guard...,
	)

	go func() {
		addr := ":" + cfg.AppPort
		log.WithFields(logrus.Fields{"addr": addr, "db": cfg.DBDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	close(stopSweeper)
	if err := sweep.Stop(ctx); err != nil {
		log.WithError(err).Warn("overdue sweep stop")
	}
	if err := dispatcher.Close(ctx); err != nil {
		log.WithError(err).WithField("dropped", dispatcher.Dropped()).Warn("notification queue not drained")
	}
}
