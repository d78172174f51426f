package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка.
type Config struct {
	World   WorldConfig     `yaml:"world"`
	Octree  OctreeConfig    `yaml:"octree"`
	Render  RenderConfig    `yaml:"render"`
	Storage StorageConfig   `yaml:"storage"`
	Views   ViewsConfig     `yaml:"viewpoints"`
	Events  EventsConfig    `yaml:"events"`
	Auth    AuthConfig      `yaml:"auth"`
	Hooks   []WebhookConfig `yaml:"webhooks"`
	Server  ServerConfig    `yaml:"server"`
	Logging LoggingConfig   `yaml:"logging"`
}

// WorldConfig - параметры генерации сетки чанков
type WorldConfig struct {
	Domain      int     `yaml:"domain"`
	ChunkSize   int     `yaml:"chunk_size"`
	Mode        string  `yaml:"mode"`
	NoiseWidth  float64 `yaml:"noise_width"`
	NoiseHeight float64 `yaml:"noise_height"`
	Seed        int64   `yaml:"seed"`
	Workers     int     `yaml:"workers"`
}

// OctreeConfig - параметры разреженного октодерева
type OctreeConfig struct {
	Scale  int    `yaml:"scale"`
	Origin [3]int `yaml:"origin"`
	// FromWorld заполняет дерево из сгенерированной сетки при старте
	FromWorld bool `yaml:"from_world"`
}

type RenderConfig struct {
	MaxReflections int        `yaml:"max_reflections"`
	Shadows        bool       `yaml:"shadows"`
	OverwriteColor bool       `yaml:"overwrite_color"`
	OverwriteValue [4]float32 `yaml:"overwrite_value"`
}

type StorageConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// ViewsConfig - где хранить именованные позы камеры: memory, redis или mysql
type ViewsConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
	MySQLDSN      string `yaml:"mysql_dsn"`
}

// EventsConfig - шина событий изменений мира: memory или nats (JetStream)
type EventsConfig struct {
	Backend   string        `yaml:"backend"`
	URL       string        `yaml:"url"`
	Stream    string        `yaml:"stream"`
	Retention time.Duration `yaml:"retention"`
	Capacity  int           `yaml:"capacity"`
}

// AuthConfig защищает изменяющие REST-маршруты JWT-токенами.
// Users: имя -> bcrypt-хеш пароля.
type AuthConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Secret   string            `yaml:"secret"`
	TokenTTL time.Duration     `yaml:"token_ttl"`
	Users    map[string]string `yaml:"users"`
}

// WebhookConfig - получатель событий шины, регистрируется при старте сервера
type WebhookConfig struct {
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url"`
	Secret     string   `yaml:"secret"`
	Events     []string `yaml:"events"`
	Timeout    int      `yaml:"timeout"`
	RetryCount int      `yaml:"retry_count"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	RESTPort int    `yaml:"rest_port"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Component string `yaml:"component"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Domain:      4,
			ChunkSize:   16,
			Mode:        "heightfield",
			NoiseWidth:  100,
			NoiseHeight: 0.5,
			Seed:        1,
		},
		Octree: OctreeConfig{
			Scale: 6,
		},
		Render: RenderConfig{
			MaxReflections: 3,
			Shadows:        true,
			OverwriteValue: [4]float32{1, 1, 1, 1},
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "data/snapshots",
		},
		Views: ViewsConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "voxel:viewpoint:",
		},
		Events: EventsConfig{
			Backend:  "memory",
			URL:      "nats://localhost:4222",
			Stream:   "VOXEL_EVENTS",
			Capacity: 1024,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Component: "server",
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// Addr возвращает адрес для net/http
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GetRESTPort())
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV VOXEL_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ErrInvalid возвращается Validate для недопустимых значений
var ErrInvalid = errors.New("invalid config")

// Validate проверяет диапазоны параметров
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	w := c.World
	if w.Domain < 1 || w.Domain > 32 {
		bad("world.domain %d not in [1,32]", w.Domain)
	}
	if w.ChunkSize < 1 {
		bad("world.chunk_size %d < 1", w.ChunkSize)
	}
	switch w.Mode {
	case "", "starfield", "heightfield":
	default:
		bad("world.mode %q", w.Mode)
	}
	if w.NoiseWidth <= 0 {
		bad("world.noise_width %v <= 0", w.NoiseWidth)
	}
	if w.NoiseHeight <= 0 || w.NoiseHeight > 1 {
		bad("world.noise_height %v not in (0,1]", w.NoiseHeight)
	}
	if w.Workers < 0 {
		bad("world.workers %d < 0", w.Workers)
	}

	if c.Octree.Scale < 0 || c.Octree.Scale > 30 {
		bad("octree.scale %d not in [0,30]", c.Octree.Scale)
	} else if c.Octree.FromWorld && w.Domain*w.ChunkSize > 1<<c.Octree.Scale {
		bad("octree.scale %d too small for world of side %d", c.Octree.Scale, w.Domain*w.ChunkSize)
	}

	if c.Render.MaxReflections < 0 || c.Render.MaxReflections > 50 {
		bad("render.max_reflections %d not in [0,50]", c.Render.MaxReflections)
	}
	for i, v := range c.Render.OverwriteValue {
		if v < 0 || v > 1 {
			bad("render.overwrite_value[%d] %v not in [0,1]", i, v)
		}
	}

	if c.Storage.Enabled && !c.Storage.InMemory && c.Storage.Path == "" {
		bad("storage.path is empty")
	}
	switch c.Views.Backend {
	case "", "memory":
	case "redis":
		if c.Views.RedisAddr == "" {
			bad("viewpoints.redis_addr is empty")
		}
	case "mysql":
		if c.Views.MySQLDSN == "" {
			bad("viewpoints.mysql_dsn is empty")
		}
	default:
		bad("viewpoints.backend %q", c.Views.Backend)
	}

	switch c.Events.Backend {
	case "", "memory":
	case "nats":
		if c.Events.URL == "" {
			bad("events.url is empty")
		}
	default:
		bad("events.backend %q", c.Events.Backend)
	}
	if c.Events.Capacity < 0 {
		bad("events.capacity %d < 0", c.Events.Capacity)
	}

	if c.Auth.Enabled {
		if len(c.Auth.Secret) < 32 {
			bad("auth.secret shorter than 32 bytes")
		}
		if len(c.Auth.Users) == 0 {
			bad("auth.users is empty")
		}
	}
	if c.Auth.TokenTTL < 0 {
		bad("auth.token_ttl %v < 0", c.Auth.TokenTTL)
	}

	for i, h := range c.Hooks {
		if h.URL == "" || len(h.Events) == 0 {
			bad("webhooks[%d] needs url and events", i)
		}
	}

	if c.Server.RESTPort < 0 || c.Server.RESTPort > 65535 {
		bad("server.rest_port %d", c.Server.RESTPort)
	}

	return errors.Join(errs...)
}
