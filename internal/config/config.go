package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// IngestConfig 定义邮件摄取管线的配置
type IngestConfig struct {
	Interval    time.Duration // 两次摄取之间的间隔，默认 10 分钟
	Keywords    []string      // 主题关键词，命中任意一个即拉取
	Folder      string        // 要搜索的邮箱文件夹，默认 "INBOX"
	AuthTimeout time.Duration // IMAP 连接与认证超时，默认 5 秒
	MaxAttempts int           // 单封邮件分类的最大尝试次数（含重试），默认 3
}

// ClassifierConfig 定义外部 AI 分类服务的配置
type ClassifierConfig struct {
	Provider string        // 供应商: "openai" 或 "gemini"
	APIKey   string        // 供应商 API 密钥
	APIBase  string        // API 基地址，留空使用供应商默认值
	Model    string        // 模型名称，留空使用供应商默认值
	Timeout  time.Duration // 单次分类请求超时，默认 60 秒
	RPS      float64       // 对分类 API 的请求速率上限（次/秒），默认 1
}

// CryptoConfig 定义凭证静态加密配置
type CryptoConfig struct {
	Key string // AES-256 密钥，64 位十六进制字符串（32 字节）
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，留空表示不启用缓存
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "supportdesk"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server     ServerConfig
	Ingest     IngestConfig
	Classifier ClassifierConfig
	Crypto     CryptoConfig
	CORS       CORSConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: SUPPORTDESK_
// 例如: SUPPORTDESK_SERVER_HOST, SUPPORTDESK_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("supportdesk")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("ingest.interval", "10m")
	viper.SetDefault("ingest.keywords", "support,query,request,help")
	viper.SetDefault("ingest.folder", "INBOX")
	viper.SetDefault("ingest.auth_timeout", "5s")
	viper.SetDefault("ingest.max_attempts", 3)
	viper.SetDefault("classifier.provider", "openai")
	viper.SetDefault("classifier.api_key", "")
	viper.SetDefault("classifier.api_base", "")
	viper.SetDefault("classifier.model", "")
	viper.SetDefault("classifier.timeout", "60s")
	viper.SetDefault("classifier.rps", 1.0)
	viper.SetDefault("crypto.key", "")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.issuer", "supportdesk")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")

	interval, err := time.ParseDuration(viper.GetString("ingest.interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid ingest.interval: %w", err)
	}

	keywords := parseList(viper.GetString("ingest.keywords"))
	if len(keywords) == 0 {
		return nil, fmt.Errorf("ingest.keywords must not be empty")
	}

	authTimeout, err := time.ParseDuration(viper.GetString("ingest.auth_timeout"))
	if err != nil {
		authTimeout = 5 * time.Second
	}

	maxAttempts := viper.GetInt("ingest.max_attempts")
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	classifierTimeout, err := time.ParseDuration(viper.GetString("classifier.timeout"))
	if err != nil {
		classifierTimeout = 60 * time.Second
	}

	rps := viper.GetFloat64("classifier.rps")
	if rps <= 0 {
		rps = 1.0
	}

	cryptoKey := viper.GetString("crypto.key")
	if cryptoKey != "" {
		raw, err := hex.DecodeString(cryptoKey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("crypto.key must be a 64-character hex string (32 bytes)")
		}
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set SUPPORTDESK_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Ingest: IngestConfig{
			Interval:    interval,
			Keywords:    keywords,
			Folder:      viper.GetString("ingest.folder"),
			AuthTimeout: authTimeout,
			MaxAttempts: maxAttempts,
		},
		Classifier: ClassifierConfig{
			Provider: strings.ToLower(viper.GetString("classifier.provider")),
			APIKey:   viper.GetString("classifier.api_key"),
			APIBase:  viper.GetString("classifier.api_base"),
			Model:    viper.GetString("classifier.model"),
			Timeout:  classifierTimeout,
			RPS:      rps,
		},
		Crypto: CryptoConfig{
			Key: cryptoKey,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
