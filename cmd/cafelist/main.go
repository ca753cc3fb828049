package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"cafelist/internal/auth"
	"cafelist/internal/config"
	"cafelist/internal/credential"
	"cafelist/internal/logging"
	"cafelist/internal/metrics"
	"cafelist/internal/service"
	"cafelist/internal/store"
	"cafelist/internal/throttle"
	"cafelist/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, logCloser, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}
	defer logCloser.Close()

	db, err := store.Open(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.InitMetrics(reg)

	sessionStore := newSessionStore(cfg.Session, logger)
	manager := auth.NewManager(sessionStore, cfg.Session.Name, db, logger)

	var limiter throttle.Limiter = throttle.NewLocalLimiter(cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, login throttling stays in process")
		} else {
			limiter = throttle.NewRedisLimiter(client, cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow, logger)
			logger.WithField("addr", cfg.Redis.Addr).Info("Login throttling backed by Redis")
		}
		cancel()
	}

	svc := service.New(db, credential.NewHasher(cfg.Auth.BcryptCost), auth.AdminOnly{AdminID: cfg.Auth.AdminID}, logger)
	api := web.NewAPI(web.Options{
		Service:     svc,
		Sessions:    manager,
		Limiter:     limiter,
		Metrics:     m,
		DB:          db,
		Logger:      logger,
		SlowRequest: cfg.Server.SlowRequest,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Router(reg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during server shutdown")
	}

	logger.Info("Server stopped")
}

// newSessionStore builds the cookie store. Without a configured secret a
// random key is generated, so sessions do not survive a restart.
func newSessionStore(cfg config.SessionConfig, logger *logrus.Logger) *sessions.CookieStore {
	key := []byte(cfg.Secret)
	if len(key) == 0 {
		logger.Warn("No session secret configured, generating a random one")
		key = securecookie.GenerateRandomKey(32)
	}

	st := sessions.NewCookieStore(key)
	st.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	return st
}
