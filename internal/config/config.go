package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	"vitalmesh/common/config"
	"vitalmesh/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 采集后端
const (
	BackendFirebase = "firebase" // Firebase Admin SDK（Realtime Database）
	BackendREST     = "rest"     // Realtime Database REST 接口
	BackendRedis    = "redis"    // Redis KV（开发 / 联调环境）
)

// 历史数据来源
const (
	HistorySourceStore   = "store"   // 与采集后端相同的有序历史路径
	HistorySourceArchive = "archive" // PostgreSQL sensor_readings
	HistorySourceNone    = "none"    // 不加载，使用每周期新 GSR 读数追加
)

// Config 遥测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	Firebase config.FirebaseConfig

	Telemetry struct {
		DeviceID string // 被监测设备标识，用于缓存键 / MQTT 主题 / 归档

		Fetch struct {
			Backend     string            // firebase / rest / redis
			Root        string            // 实时数据根路径，如 "sensors/actual"
			Channels    map[string]string // 通道 -> 路径
			Timeout     time.Duration     // 单次读取超时，0 表示不限制
			RedisPrefix string            // redis 后端的键前缀
		}

		History struct {
			Source   string // store / archive / none
			Path     string // 有序历史路径，如 "sensors/historial"
			Limit    int    // 读取最近 N 条，默认 100
			Capacity int    // 窗口大小，默认 40
		}

		Poll struct {
			Interval        time.Duration // 轮询周期，默认 3s
			UpdateGrace     time.Duration // isUpdating 保持时长，默认 500ms
			MetricsInterval time.Duration // 指标报告周期，默认 60s
		}

		Cache struct {
			Enabled           bool
			RealtimeKeyPrefix string // 如 "vitalmesh:telemetry:"
			RealtimeTTL       int    // 秒
		}

		Alerts struct {
			Enabled bool
			Stream  string
			MaxLen  int64
		}

		Archive struct {
			Enabled bool
		}

		MQTT struct {
			Enabled     bool
			TopicPrefix string // 如 "vitalmesh"
		}
	}

	HTTP struct {
		Addr        string
		AuthEnabled bool
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（.env -> 环境变量 -> 可选的通道 YAML 文件）
func Load() (*Config, error) {
	// .env 不存在时忽略；已存在的环境变量不会被覆盖
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "vitalmesh"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "vitalmesh-telemetry"
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Firebase.LoadFromEnv("FIREBASE")

	t := &cfg.Telemetry
	t.DeviceID = getEnv("DEVICE_ID", "vitalmesh-01")

	t.Fetch.Backend = strings.ToLower(getEnv("FETCH_BACKEND", BackendFirebase))
	t.Fetch.Root = strings.Trim(getEnv("FETCH_ROOT", "sensors/actual"), "/")
	t.Fetch.Timeout = getDuration("FETCH_TIMEOUT", 0)
	t.Fetch.RedisPrefix = getEnv("FETCH_REDIS_PREFIX", "vitalmesh:rtdb:")
	t.Fetch.Channels = DefaultChannels(t.Fetch.Root)
	if path := os.Getenv("CHANNELS_FILE"); path != "" {
		overrides, err := LoadChannelsFile(path)
		if err != nil {
			return nil, err
		}
		for ch, p := range overrides {
			t.Fetch.Channels[ch] = p
		}
	}

	t.History.Source = strings.ToLower(getEnv("HISTORY_SOURCE", HistorySourceStore))
	t.History.Path = strings.Trim(getEnv("HISTORY_PATH", "sensors/historial"), "/")
	t.History.Limit = getInt("HISTORY_LIMIT", 100)
	t.History.Capacity = getInt("HISTORY_CAPACITY", 40)

	t.Poll.Interval = getDuration("POLL_INTERVAL", 3*time.Second)
	t.Poll.UpdateGrace = getDuration("UPDATE_GRACE", 500*time.Millisecond)
	t.Poll.MetricsInterval = getDuration("METRICS_INTERVAL", 60*time.Second)

	t.Cache.Enabled = getBool("CACHE_ENABLED", true)
	t.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "vitalmesh:telemetry:")
	t.Cache.RealtimeTTL = getInt("CACHE_REALTIME_TTL", 30)

	t.Alerts.Enabled = getBool("ALERTS_ENABLED", true)
	t.Alerts.Stream = getEnv("ALERTS_STREAM", "vitalmesh:alerts:stream")
	t.Alerts.MaxLen = int64(getInt("ALERTS_MAXLEN", 1000))

	t.Archive.Enabled = getBool("ARCHIVE_ENABLED", false)

	t.MQTT.Enabled = getBool("MQTT_ENABLED", false)
	t.MQTT.TopicPrefix = strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "vitalmesh"), "/")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.AuthEnabled = getBool("HTTP_AUTH_ENABLED", true)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验互相依赖的配置项
func (c *Config) Validate() error {
	t := &c.Telemetry
	switch t.Fetch.Backend {
	case BackendFirebase, BackendREST, BackendRedis:
	default:
		return fmt.Errorf("unknown FETCH_BACKEND %q", t.Fetch.Backend)
	}
	switch t.History.Source {
	case HistorySourceStore, HistorySourceArchive, HistorySourceNone:
	default:
		return fmt.Errorf("unknown HISTORY_SOURCE %q", t.History.Source)
	}
	if t.History.Source == HistorySourceArchive && !t.Archive.Enabled {
		return fmt.Errorf("HISTORY_SOURCE=archive requires ARCHIVE_ENABLED=true")
	}
	if t.Fetch.Backend == BackendREST && c.Firebase.DatabaseURL == "" {
		return fmt.Errorf("FETCH_BACKEND=rest requires FIREBASE_DATABASE_URL")
	}
	if t.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if len(t.Fetch.Channels) == 0 {
		return fmt.Errorf("no channels configured")
	}
	for ch := range t.Fetch.Channels {
		if !slices.Contains(models.AllChannels, ch) {
			return fmt.Errorf("unknown channel %q (expected one of %s)", ch, strings.Join(models.AllChannels, ", "))
		}
	}
	return nil
}

// DefaultChannels 默认通道路径：<root>/<channel>
func DefaultChannels(root string) map[string]string {
	channels := make(map[string]string, len(models.AllChannels))
	for _, ch := range models.AllChannels {
		if root == "" {
			channels[ch] = ch
		} else {
			channels[ch] = root + "/" + ch
		}
	}
	return channels
}

// channelsFile 通道映射文件格式
//
//	channels:
//	  GPS: devices/alpha/GPS
//	  IMU: devices/alpha/IMU
type channelsFile struct {
	Channels map[string]string `yaml:"channels"`
}

// LoadChannelsFile 读取通道映射 YAML
func LoadChannelsFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channels file: %w", err)
	}
	var f channelsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse channels file: %w", err)
	}
	out := make(map[string]string, len(f.Channels))
	for ch, p := range f.Channels {
		p = strings.Trim(p, "/")
		if ch == "" || p == "" {
			return nil, fmt.Errorf("invalid channel mapping %q -> %q", ch, p)
		}
		out[ch] = p
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getDuration 支持 "3s" / "500ms"，纯数字按毫秒处理
func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
