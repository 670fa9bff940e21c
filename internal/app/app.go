package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/linemk/peckup-shop/internal/cache"
	"github.com/linemk/peckup-shop/internal/config"
	"github.com/linemk/peckup-shop/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Redis    *redis.Client // nil, если кэш чеков выключен
	Kafka    *kafka.Writer // nil, если публикация событий выключена
	Registry *prometheus.Registry
}

// DSN собирает строку подключения к postgres
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

// NewApp создаёт новый экземпляр App: БД обязательна, redis и kafka подключаются, только если заданы в конфиге
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", DSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Registry: NewRegistry(),
	}

	if cfg.Redis.Address != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// без кэша чеки просто рендерятся каждый раз
			log.Warn("redis unavailable, receipt cache disabled", slog.String("address", cfg.Redis.Address), slog.Any("error", err))
		} else {
			app.Redis = client
		}
	}

	app.Kafka = events.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if app.Kafka == nil {
		log.Info("kafka brokers not configured, order events disabled")
	}

	return app, nil
}

// NewRegistry - реестр метрик приложения вместе со стандартными метриками рантайма
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Close освобождает соединения в обратном порядке
func (a *App) Close() {
	if a.Kafka != nil {
		if err := a.Kafka.Close(); err != nil {
			a.Logger.Error("failed to close kafka writer", slog.Any("error", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("failed to close database", slog.Any("error", err))
	}
}
