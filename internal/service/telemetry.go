package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"vitalmesh/internal/config"
	"vitalmesh/internal/consumer"
	"vitalmesh/internal/fetcher"
	"vitalmesh/internal/history"
	"vitalmesh/internal/models"
	"vitalmesh/internal/poller"
	"vitalmesh/internal/repository"
	"vitalmesh/internal/store"

	firebase "firebase.google.com/go/v4"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"vitalmesh/common/database"
	firebasecommon "vitalmesh/common/firebase"
	mqttcommon "vitalmesh/common/mqtt"
	rediscommon "vitalmesh/common/redis"
)

// TelemetryService 遥测服务：轮询 + 订阅者
type TelemetryService struct {
	config      *config.Config
	logger      *zap.Logger
	redisClient *redis.Client
	db          *sql.DB
	mqttClient  *mqttcommon.Client
	app         *firebase.App

	readingRepo *repository.ReadingRepository
	poller      *poller.Poller
	cache       *consumer.CacheManager
	alerts      *consumer.AlertPublisher
	sinks       []consumer.Sink

	handle     *poller.Handle
	sinkCancel context.CancelFunc
	sinkWG     sync.WaitGroup
}

// NewTelemetryService 创建遥测服务
func NewTelemetryService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*TelemetryService, error) {
	s := &TelemetryService{config: cfg, logger: logger}
	t := &cfg.Telemetry

	// Redis：缓存 / 告警 / redis 采集后端
	if t.Cache.Enabled || t.Alerts.Enabled || t.Fetch.Backend == config.BackendRedis {
		client, err := rediscommon.Connect(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.redisClient = client
	}

	// Firebase：RTDB 采集后端 / 鉴权 / 档案
	if t.Fetch.Backend == config.BackendFirebase || cfg.HTTP.AuthEnabled || cfg.Firebase.ProjectID != "" {
		app, err := firebasecommon.NewApp(ctx, &cfg.Firebase)
		if err != nil {
			s.close()
			return nil, err
		}
		s.app = app
	}

	source, err := s.newSource(ctx)
	if err != nil {
		s.close()
		return nil, err
	}

	// PostgreSQL 归档
	if t.Archive.Enabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		s.readingRepo = repository.NewReadingRepository(db, logger)
	}

	var historyLoader poller.HistoryLoader
	switch t.History.Source {
	case config.HistorySourceStore:
		historyLoader = fetcher.NewHistoryReader(source, t.History.Path, t.History.Limit, logger)
	case config.HistorySourceArchive:
		historyLoader = repository.NewArchiveHistoryReader(s.readingRepo, t.DeviceID, t.History.Limit)
	}

	s.poller = poller.NewPoller(
		poller.Config{
			DeviceID:        t.DeviceID,
			Interval:        t.Poll.Interval,
			UpdateGrace:     t.Poll.UpdateGrace,
			MetricsInterval: t.Poll.MetricsInterval,
		},
		fetcher.NewSnapshotFetcher(source, t.Fetch.Channels, t.Fetch.Timeout, logger),
		historyLoader,
		history.New(t.History.Capacity),
		logger,
	)

	if t.Cache.Enabled {
		s.cache = consumer.NewCacheManager(cfg, s.redisClient, logger)
		s.sinks = append(s.sinks, s.cache)
	}
	if t.Alerts.Enabled {
		s.alerts = consumer.NewAlertPublisher(cfg, s.redisClient, logger)
		s.sinks = append(s.sinks, s.alerts)
	}
	if t.Archive.Enabled {
		s.sinks = append(s.sinks, consumer.NewArchiveWriter(s.readingRepo))
	}
	if t.MQTT.Enabled {
		client, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.close()
			return nil, err
		}
		s.mqttClient = client
		s.sinks = append(s.sinks, consumer.NewMQTTPublisher(client, t.MQTT.TopicPrefix, cfg.MQTT.QoS, logger))
	}

	return s, nil
}

func (s *TelemetryService) newSource(ctx context.Context) (fetcher.Source, error) {
	cfg := s.config
	switch cfg.Telemetry.Fetch.Backend {
	case config.BackendFirebase:
		client, err := s.app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create realtime database client: %w", err)
		}
		return fetcher.NewRTDBSource(client), nil
	case config.BackendREST:
		return fetcher.NewRESTSource(cfg.Firebase.DatabaseURL, cfg.Firebase.DatabaseSecret, cfg.Telemetry.Fetch.Timeout), nil
	case config.BackendRedis:
		return fetcher.NewKVSource(store.NewRedisKV(s.redisClient), cfg.Telemetry.Fetch.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown fetch backend %q", cfg.Telemetry.Fetch.Backend)
	}
}

// Start 启动订阅者与轮询（非阻塞）
func (s *TelemetryService) Start(ctx context.Context) error {
	s.logger.Info("Starting telemetry service components")

	if s.readingRepo != nil {
		if err := s.readingRepo.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	sinkCtx, cancel := context.WithCancel(context.Background())
	s.sinkCancel = cancel
	for _, sink := range s.sinks {
		ch, unsubscribe := s.poller.Subscribe(16)
		s.sinkWG.Add(1)
		go func(sink consumer.Sink, ch <-chan models.Snapshot, unsubscribe func()) {
			defer s.sinkWG.Done()
			defer unsubscribe()
			consumer.Run(sinkCtx, ch, sink, s.logger)
		}(sink, ch, unsubscribe)
		s.logger.Info("Snapshot sink attached", zap.String("sink", sink.Name()))
	}

	handle, err := s.poller.Start(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start poller: %w", err)
	}
	s.handle = handle

	s.logger.Info("Telemetry service started successfully",
		zap.String("device_id", s.config.Telemetry.DeviceID),
		zap.String("backend", s.config.Telemetry.Fetch.Backend),
		zap.String("history_source", s.config.Telemetry.History.Source),
		zap.Int("sinks", len(s.sinks)),
	)
	return nil
}

// Stop 停止轮询（等待进行中的周期完成），再关闭订阅者与连接
func (s *TelemetryService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping telemetry service")

	if s.handle != nil {
		s.handle.Stop()
	}
	if s.sinkCancel != nil {
		s.sinkCancel()
	}

	done := make(chan struct{})
	go func() {
		s.sinkWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for snapshot sinks")
	}

	s.close()
	s.logger.Info("Telemetry service stopped")
	return nil
}

func (s *TelemetryService) close() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Error closing Redis client", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Error closing database connection", zap.Error(err))
	}
}

// Poller 轮询调度器
func (s *TelemetryService) Poller() *poller.Poller { return s.poller }

// Cache 实时缓存（未启用时为 nil）
func (s *TelemetryService) Cache() *consumer.CacheManager { return s.cache }

// Alerts 告警发布器（未启用时为 nil）
func (s *TelemetryService) Alerts() *consumer.AlertPublisher { return s.alerts }

// FirebaseApp Firebase Admin App（未配置时为 nil）
func (s *TelemetryService) FirebaseApp() *firebase.App { return s.app }
