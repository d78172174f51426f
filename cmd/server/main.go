package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/voxel-engine/internal/api"
	"github.com/annel0/voxel-engine/internal/app"
	"github.com/annel0/voxel-engine/internal/auth"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := initLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🧊 Запуск voxel-engine: мир %d³ чанков по %d, режим %s, октодерево 2^%d",
		cfg.World.Domain, cfg.World.ChunkSize, cfg.World.Mode, cfg.Octree.Scale)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	// === ХРАНИЛИЩА ===
	opts := app.Options{Metrics: collector}

	if cfg.Storage.Enabled {
		snaps, err := storage.NewSnapshotStorage(cfg.Storage.Path, cfg.Storage.InMemory)
		if err != nil {
			logging.Error("❌ Хранилище снимков недоступно: %v", err)
			log.Fatalf("❌ Хранилище снимков недоступно: %v", err)
		}
		opts.Snapshots = snaps
	}

	views, err := storage.OpenViewpointRepo(ctx, storage.ViewpointOptions{
		Backend: cfg.Views.Backend,
		Redis: &storage.RedisConfig{
			Addr:      cfg.Views.RedisAddr,
			Password:  cfg.Views.RedisPassword,
			DB:        cfg.Views.RedisDB,
			KeyPrefix: cfg.Views.KeyPrefix,
		},
		DSN: cfg.Views.MySQLDSN,
	})
	if err != nil {
		logging.Warn("⚠️ Точки обзора (%s) недоступны, используем память: %v", cfg.Views.Backend, err)
	}
	opts.Viewpoints = views

	// === ШИНА СОБЫТИЙ ===
	bus, err := eventbus.Open(eventbus.Options{
		Backend:   cfg.Events.Backend,
		URL:       cfg.Events.URL,
		Stream:    cfg.Events.Stream,
		Retention: cfg.Events.Retention,
		Capacity:  cfg.Events.Capacity,
	})
	if err != nil {
		logging.Warn("⚠️ Шина событий (%s) недоступна, используем память: %v", cfg.Events.Backend, err)
	}
	opts.Bus = bus

	busMetrics := eventbus.NewMetricsExporter(bus, reg, 5*time.Second)
	busMetrics.Start()
	defer busMetrics.Stop()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("⚠️ LoggingListener не запущен: %v", err)
	}

	webhooks := api.NewWebhookForwarder(0)
	for _, h := range cfg.Hooks {
		if _, err := webhooks.AddWebhook(api.OutboundWebhook{
			Name:       h.Name,
			URL:        h.URL,
			Secret:     h.Secret,
			Events:     h.Events,
			Timeout:    h.Timeout,
			RetryCount: h.RetryCount,
		}); err != nil {
			logging.Warn("⚠️ Webhook %s пропущен: %v", h.Name, err)
		}
	}
	if err := webhooks.Start(ctx, bus); err != nil {
		logging.Warn("⚠️ Пересылка webhook'ов не запущена: %v", err)
	}
	defer webhooks.Stop()

	// === СЕРВИС МИРА ===
	service, err := app.NewWorldService(cfg, opts)
	if err != nil {
		logging.Error("❌ Ошибка создания сервиса мира: %v", err)
		log.Fatalf("❌ Ошибка создания сервиса мира: %v", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logging.Error("❌ Ошибка закрытия хранилищ: %v", err)
		}
	}()

	start := time.Now()
	if err := service.Generate(ctx); err != nil {
		if !service.WorldInfo().Populated {
			logging.Error("❌ Генерация мира прервана: %v", err)
			return
		}
		logging.Warn("⚠️ Мир сгенерирован с ошибками вокселей: %v", err)
	}
	logging.Info("🌍 Мир сгенерирован за %v", time.Since(start))

	// === REST API ===
	var authn *auth.Authenticator
	if cfg.Auth.Enabled {
		authn, err = auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Users)
		if err != nil {
			logging.Error("❌ Ошибка настройки аутентификации: %v", err)
			return
		}
		logging.Info("🔐 JWT аутентификация активирована для %d операторов", len(cfg.Auth.Users))
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewRestServer(api.Config{
		Addr:     cfg.Server.Addr(),
		Service:  service,
		Auth:     authn,
		Webhooks: webhooks,
		Registry: reg,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logging.Info("✅ Сервер готов")
	logging.Info("   ❤️  Health check: http://%s/health", cfg.Server.Addr())
	logging.Info("   📦 Буфер блоков: curl -o blocks.bin http://%s/api/world/blocks", cfg.Server.Addr())

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал, завершение работы...")
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ REST API остановлен с ошибкой: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// initLogging создаёт файловый логгер компонента с уровнем консоли из конфигурации
func initLogging(cfg config.LoggingConfig) error {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	component := cfg.Component
	if component == "" {
		component = "server"
	}
	if dir := os.Getenv("VOXEL_LOG_DIR"); dir != "" {
		logging.LogDir = dir
	}

	logger, err := logging.NewLogger(component)
	if err != nil {
		return err
	}
	logger.SetLevels(level, logging.TRACE)
	logging.SetDefaultLogger(logger)
	return nil
}
