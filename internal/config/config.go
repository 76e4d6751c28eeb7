// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密码、密钥）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 凭据单一数据源：密码/密钥只存在 .env / 环境变量中
// （JWT_SECRET、DB_PASSWORD、MINIO_ROOT_USER、MINIO_ROOT_PASSWORD、
// ADMIN_EMAIL、ADMIN_PASSWORD），YAML 中不存储任何密码。
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认，SQLite + 本地磁盘存储)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod (PostgreSQL + MinIO)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"portfolio-portal/internal/shared/blobstore"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "postgres"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 DB_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	Backend  string                `yaml:"backend"`   // "local" or "minio"
	LocalDir string                `yaml:"local_dir"` // 本地后端的上传根目录
	MinIO    blobstore.MinIOConfig `yaml:"minio"`
}

// AuthConfig 认证配置
// JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret        string        `yaml:"-"`
	TokenTTL         time.Duration `yaml:"token_ttl"`          // 会话令牌有效期，默认 168h
	ResetTokenTTL    time.Duration `yaml:"reset_token_ttl"`    // 重置令牌有效期，默认 1h
	ExposeResetToken *bool         `yaml:"expose_reset_token"` // 重置令牌是否随响应返回；缺省时 prod=false，其余=true
	AdminEmail       string        `yaml:"-"`                  // 只从 ADMIN_EMAIL 环境变量读取
	AdminPassword    string        `yaml:"-"`                  // 只从 ADMIN_PASSWORD 环境变量读取
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	APIPort        string
	DatabaseDriver string
	DatabaseURL    string // postgres 连接串或 sqlite DSN
	Storage        StorageConfig
	Auth           AuthConfig
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	cfg := &Config{
		Env:            env,
		APIPort:        getEnv("PORT", yamlCfg.Server.Port),
		DatabaseDriver: yamlCfg.Database.Driver,
		Storage:        yamlCfg.Storage,
		Auth:           yamlCfg.Auth,
	}

	switch cfg.DatabaseDriver {
	case "postgres":
		cfg.DatabaseURL = buildDatabaseURL(yamlCfg.Database, getEnv("DB_PASSWORD", ""))
	default:
		cfg.DatabaseDriver = "sqlite"
		cfg.DatabaseURL = yamlCfg.Database.Path
	}

	// 敏感信息只从环境变量读取
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Auth.AdminEmail = getEnv("ADMIN_EMAIL", "")
	cfg.Auth.AdminPassword = getEnv("ADMIN_PASSWORD", "")
	cfg.Storage.MinIO.AccessKey = getEnv("MINIO_ROOT_USER", "")
	cfg.Storage.MinIO.SecretKey = getEnv("MINIO_ROOT_PASSWORD", "")

	cfg.validate()
	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "4000"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "file:portal.db?cache=shared&mode=rwc", Host: "localhost", Port: 5432, User: "portal", Name: "portfolio_portal", SSLMode: "disable"},
		Storage:  StorageConfig{Backend: "local", LocalDir: "uploads"},
		Auth:     AuthConfig{TokenTTL: 7 * 24 * time.Hour, ResetTokenTTL: time.Hour},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// validate 验证并填充默认值
func (c *Config) validate() {
	if c.APIPort == "" {
		c.APIPort = "4000"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.ResetTokenTTL == 0 {
		c.Auth.ResetTokenTTL = time.Hour
	}
	if c.Auth.ExposeResetToken == nil {
		expose := c.Env != EnvProduction
		c.Auth.ExposeResetToken = &expose
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "uploads"
	}
}

// buildDatabaseURL 构建 PostgreSQL 连接字符串
func buildDatabaseURL(db DatabaseConfig, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s/%s, Storage: %s}",
		c.Env, c.DatabaseDriver, maskPassword(c.DatabaseURL), c.Storage.Backend)
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
