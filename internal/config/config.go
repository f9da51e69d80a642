// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Session  SessionConfig  `mapstructure:"session"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储会话令牌的签名配置。
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置，用于异步语音合成任务。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	PresignMinutes  int    `mapstructure:"presign_minutes"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
	Prompt         LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置提示词模板与数据概要的生成方式。
// SchemaMode 取值 dtypes（列名+类型）或 sample（随机抽样若干行）。
type LLMPromptConfig struct {
	Template   string `mapstructure:"template"`
	SchemaMode string `mapstructure:"schema_mode"`
	SampleRows int    `mapstructure:"sample_rows"`
}

// SpeechConfig 存储语音合成服务的配置。Mode 取值 sync、async 或 off。
type SpeechConfig struct {
	Mode           string `mapstructure:"mode"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	Voice          string `mapstructure:"voice"`
	Format         string `mapstructure:"format"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxChars       int    `mapstructure:"max_chars"`
}

// DatasetConfig 存储销售数据集加载相关的配置。
type DatasetConfig struct {
	DefaultPath         string `mapstructure:"default_path"`
	CoerceNumeric       bool   `mapstructure:"coerce_numeric"`
	DropMissingUnitType bool   `mapstructure:"drop_missing_unit_type"`
	MaxUploadMB         int    `mapstructure:"max_upload_mb"`
	CacheSize           int    `mapstructure:"cache_size"`
}

// ChartConfig 控制图表选择策略。Strategy 取值 model 或 keyword。
type ChartConfig struct {
	Strategy string `mapstructure:"strategy"`
	TopN     int    `mapstructure:"top_n"`
}

// SessionConfig 存储会话生命周期相关的配置。
type SessionConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.token_expire_hours", 24)
	v.SetDefault("kafka.topic", "speech-tasks")
	v.SetDefault("kafka.group_id", "sales-voice-go-speech")
	v.SetDefault("minio.bucket_name", "sales-voice")
	v.SetDefault("minio.presign_minutes", 60)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.prompt.schema_mode", "dtypes")
	v.SetDefault("llm.prompt.sample_rows", 5)
	v.SetDefault("speech.mode", "sync")
	v.SetDefault("speech.base_url", "https://api.openai.com/v1")
	v.SetDefault("speech.model", "tts-1")
	v.SetDefault("speech.voice", "alloy")
	v.SetDefault("speech.format", "mp3")
	v.SetDefault("speech.timeout_seconds", 30)
	v.SetDefault("speech.max_chars", 4000)
	v.SetDefault("dataset.default_path", "data/sales.csv")
	v.SetDefault("dataset.coerce_numeric", true)
	v.SetDefault("dataset.drop_missing_unit_type", true)
	v.SetDefault("dataset.max_upload_mb", 20)
	v.SetDefault("dataset.cache_size", 16)
	v.SetDefault("chart.strategy", "model")
	v.SetDefault("chart.top_n", 10)
	v.SetDefault("session.ttl_hours", 168)
}

// Load 从指定路径读取 YAML 配置，叠加环境变量后返回解析结果。
// 同目录或工作目录下的 .env 文件会被预先载入环境变量。
func Load(configPath string) (Config, error) {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	// 唯一的密钥：配置为空时回退到环境变量 OPENAI_API_KEY
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Speech.APIKey == "" {
		cfg.Speech.APIKey = cfg.LLM.APIKey
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
