package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Security   SecurityConfig   `mapstructure:"security"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// EngineConfig RTP引擎配置
type EngineConfig struct {
	TargetRTP float64 `mapstructure:"target_rtp"` // 目标RTP (0,1]
	Kp        float64 `mapstructure:"kp"`         // 比例增益（当前未生效，见控制器实现）
	Ki        float64 `mapstructure:"ki"`         // 积分增益
	Kd        float64 `mapstructure:"kd"`         // 微分增益
	ReelCount int     `mapstructure:"reel_count"` // 卷轴数量
	MinBet    float64 `mapstructure:"min_bet"`    // 最小下注
	MaxBet    float64 `mapstructure:"max_bet"`    // 最大下注
}

// SimulationConfig 模拟运行配置
type SimulationConfig struct {
	Mode           string          `mapstructure:"mode"`            // fixed, chaos, recovery
	MaxSpins       int             `mapstructure:"max_spins"`       // 最大旋转次数
	BetSize        float64         `mapstructure:"bet_size"`        // 固定下注金额
	ChaosMinBet    float64         `mapstructure:"chaos_min_bet"`   // 混沌模式下注下限
	ChaosMaxBet    float64         `mapstructure:"chaos_max_bet"`   // 混沌模式下注上限
	SampleInterval int             `mapstructure:"sample_interval"` // 快照采样间隔（旋转次数）
	Seed           int64           `mapstructure:"seed"`            // 随机种子（0表示使用加密随机源）
	BlackSwan      BlackSwanConfig `mapstructure:"black_swan"`
}

// BlackSwanConfig 黑天鹅事件配置（模拟罕见巨额中奖）
type BlackSwanConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	WinMultiplier   float64 `mapstructure:"win_multiplier"`   // 强制中奖倍数
	ConsecutiveHits int     `mapstructure:"consecutive_hits"` // 连续命中次数
	HitInterval     int     `mapstructure:"hit_interval"`     // 每N次旋转重复一次（0表示仅在起始注入）
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	OperatorKeyHash string        `mapstructure:"operator_key_hash"` // argon2id哈希
	TokenExpiry     time.Duration `mapstructure:"token_expiry"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	Output string        `mapstructure:"output"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("RTP_ENGINE")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				err = nil
			} else {
				return
			}
		}

		// 解析配置到结构体
		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}

		err = Validate(cfg)
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/rtp-engine.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")

	// 引擎默认配置
	v.SetDefault("engine.target_rtp", 0.95)
	v.SetDefault("engine.kp", 0.8)
	v.SetDefault("engine.ki", 0.015)
	v.SetDefault("engine.kd", 0.15)
	v.SetDefault("engine.reel_count", 3)
	v.SetDefault("engine.min_bet", 0.1)
	v.SetDefault("engine.max_bet", 10000)

	// 模拟默认配置
	v.SetDefault("simulation.mode", "fixed")
	v.SetDefault("simulation.max_spins", 5000)
	v.SetDefault("simulation.bet_size", 1.0)
	v.SetDefault("simulation.chaos_min_bet", 1.0)
	v.SetDefault("simulation.chaos_max_bet", 3000.0)
	v.SetDefault("simulation.sample_interval", 10)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.black_swan.enabled", false)
	v.SetDefault("simulation.black_swan.win_multiplier", 100.0)
	v.SetDefault("simulation.black_swan.consecutive_hits", 1)
	v.SetDefault("simulation.black_swan.hit_interval", 0)

	// 安全默认配置
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.operator_key_hash", "")
	v.SetDefault("security.token_expiry", "2h")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "rtp-engine.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// Validate 校验配置
func Validate(c *Config) error {
	if c.Engine.TargetRTP <= 0 || c.Engine.TargetRTP > 1 {
		return fmt.Errorf("engine.target_rtp 必须在(0,1]区间: %v", c.Engine.TargetRTP)
	}
	if c.Engine.ReelCount <= 0 {
		return fmt.Errorf("engine.reel_count 必须为正: %d", c.Engine.ReelCount)
	}
	if c.Engine.MinBet <= 0 || c.Engine.MaxBet < c.Engine.MinBet {
		return fmt.Errorf("无效的下注区间: [%v, %v]", c.Engine.MinBet, c.Engine.MaxBet)
	}
	switch c.Simulation.Mode {
	case "fixed", "chaos", "recovery":
	default:
		return fmt.Errorf("未知的模拟模式: %s", c.Simulation.Mode)
	}
	if c.Simulation.SampleInterval <= 0 {
		return fmt.Errorf("simulation.sample_interval 必须为正: %d", c.Simulation.SampleInterval)
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := Validate(newCfg); err != nil {
			fmt.Printf("配置重载被拒绝: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}
	})
}
