package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/rkscollector/rkscollector/internal/errs"
	"github.com/rkscollector/rkscollector/pkg/logger"
	"github.com/rkscollector/rkscollector/pkg/ssh"
)

// EnvPrefix 自动环境变量前缀，如 APDIAG_SSH_TIMEOUT
const EnvPrefix = "APDIAG"

// Config 应用配置结构
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Log      logger.Config     `mapstructure:"log"`
	Device   DeviceConfig      `mapstructure:"device"`
	SSH      SSHConfig         `mapstructure:"ssh"`
	Process  ssh.ProcessConfig `mapstructure:"process"`
	Radios   RadioConfig       `mapstructure:"radios"`
	Database DatabaseConfig    `mapstructure:"database"`
	Archive  ArchiveConfig     `mapstructure:"archive"`
	Metrics  MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DeviceConfig 目标 AP 连接参数（AP_IP / AP_PORT / AP_USERNAME / AP_PASSWORD）
type DeviceConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SSHConfig 会话与传输配置
type SSHConfig struct {
	// Transport network|process（AP_TRANSPORT）
	Transport   string        `mapstructure:"transport" validate:"oneof=network process"`
	Timeout     time.Duration `mapstructure:"timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Settle      time.Duration `mapstructure:"settle"`
	LineEnding  string        `mapstructure:"line_ending"`
	Markers     ssh.Markers   `mapstructure:"markers"`
	// MaxSessions 同时打开的会话上限，0 不限制
	MaxSessions int `mapstructure:"max_sessions" validate:"min=0"`
}

// RadioConfig 按射频下发命令时使用的射频列表
type RadioConfig struct {
	Default []string `mapstructure:"default" validate:"min=1,dive,required"`
	Channel []string `mapstructure:"channel" validate:"min=1,dive,required"`
}

// DatabaseConfig 执行记录（sqlite）
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ArchiveConfig 会话记录归档
type ArchiveConfig struct {
	// Backend none|local|minio
	Backend string      `mapstructure:"backend" validate:"oneof=none local minio"`
	Prefix  string      `mapstructure:"prefix"`
	Local   LocalConfig `mapstructure:"local"`
	Minio   MinioConfig `mapstructure:"minio"`
}

type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// MetricsConfig prometheus 指标
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var (
	globalMu     sync.RWMutex
	globalConfig *Config
	validate     = validator.New()
)

// envBindings 兼容原有的环境变量名
var envBindings = map[string]string{
	"device.host":     "AP_IP",
	"device.port":     "AP_PORT",
	"device.username": "AP_USERNAME",
	"device.password": "AP_PASSWORD",
	"log.debug":       "SSH_DEBUG",
	"ssh.transport":   "AP_TRANSPORT",
}

// Load 加载配置：默认值 < 配置文件 < .env < 环境变量
//
// configPath 为空时在 ./configs 与当前目录查找 config.yaml，找不到文件不算错误。
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalMu.Lock()
	globalConfig = &cfg
	globalMu.Unlock()
	return &cfg, nil
}

// loadDotEnv 读取 .env，已存在的环境变量不覆盖
func loadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/rkscollector.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.debug", false)

	v.SetDefault("device.host", "")
	v.SetDefault("device.port", ssh.DefaultPort)
	v.SetDefault("device.username", ssh.DefaultUsername)
	v.SetDefault("device.password", "")

	sshDef := ssh.DefaultConfig()
	v.SetDefault("ssh.transport", "network")
	v.SetDefault("ssh.timeout", sshDef.Timeout)
	v.SetDefault("ssh.dial_timeout", sshDef.DialTimeout)
	v.SetDefault("ssh.settle", sshDef.Settle)
	v.SetDefault("ssh.line_ending", sshDef.LineEnding)
	v.SetDefault("ssh.markers.login", sshDef.Markers.Login)
	v.SetDefault("ssh.markers.password", sshDef.Markers.Password)
	v.SetDefault("ssh.markers.prompt", sshDef.Markers.Prompt)
	v.SetDefault("ssh.markers.rejected", sshDef.Markers.Rejected)
	v.SetDefault("ssh.max_sessions", 0)

	procDef := ssh.DefaultProcessConfig()
	v.SetDefault("process.binary", procDef.Binary)
	v.SetDefault("process.image", procDef.Image)
	v.SetDefault("process.extra_args", []string{})
	v.SetDefault("process.connect_timeout", procDef.ConnectTimeout)
	v.SetDefault("process.timeout", procDef.Timeout)
	v.SetDefault("process.settle", procDef.Settle)
	v.SetDefault("process.line_ending", procDef.LineEnding)
	v.SetDefault("process.markers.login", procDef.Markers.Login)
	v.SetDefault("process.markers.password", procDef.Markers.Password)
	v.SetDefault("process.markers.prompt", procDef.Markers.Prompt)
	v.SetDefault("process.markers.rejected", procDef.Markers.Rejected)

	v.SetDefault("radios.default", []string{"wifi0", "wifi1"})
	v.SetDefault("radios.channel", []string{"wifi0", "wifi1", "wifi2"})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", "./data/rkscollector.db")

	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "transcripts")
	v.SetDefault("archive.local.base_dir", "./data/archive")
	v.SetDefault("archive.minio.host", "")
	v.SetDefault("archive.minio.port", 9000)
	v.SetDefault("archive.minio.access_key", "")
	v.SetDefault("archive.minio.secret_key", "")
	v.SetDefault("archive.minio.bucket", "rkscollector-raw")
	v.SetDefault("archive.minio.secure", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func normalize(cfg *Config) {
	cfg.SSH.Transport = strings.ToLower(strings.TrimSpace(cfg.SSH.Transport))
	cfg.Archive.Backend = strings.ToLower(strings.TrimSpace(cfg.Archive.Backend))
	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	cfg.Device.Host = strings.TrimSpace(cfg.Device.Host)
	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = "none"
	}
}

// Validate 校验配置取值；连接参数的必填校验推迟到发起会话前
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace())
			}
			return fmt.Errorf("%w: invalid settings: %s", errs.ErrConfiguration, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}
	return nil
}

// ConnectionInfo 根据配置构造一次调用使用的连接参数
func (c *Config) ConnectionInfo() ssh.ConnectionInfo {
	return ssh.ConnectionInfo{
		Host:     c.Device.Host,
		Port:     c.Device.Port,
		Username: c.Device.Username,
		Password: c.Device.Password,
	}.WithDefaults()
}

// NetworkConfig 直连传输配置
func (c *Config) NetworkConfig() ssh.Config {
	return ssh.Config{
		Timeout:     c.SSH.Timeout,
		DialTimeout: c.SSH.DialTimeout,
		Settle:      c.SSH.Settle,
		LineEnding:  c.SSH.LineEnding,
		Markers:     c.SSH.Markers,
	}
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Get 最近一次成功加载的配置
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}
