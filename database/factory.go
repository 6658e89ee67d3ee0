package database

import (
	"fmt"
	"time"
)

// Config 数据库配置
type Config struct {
	Type            string `yaml:"type" json:"type"`
	DSN             string `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime"` // 秒，默认3600
	LogLevel        string `yaml:"log_level" json:"log_level"`
}

// NewDatabase 根据配置创建数据库实例。
// 研究场景默认本地 SQLite，不需要额外部署。
func NewDatabase(config *Config) (Database, error) {
	dbConfig := &DBConfig{
		Type:            config.Type,
		DSN:             config.DSN,
		MaxOpenConns:    config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: time.Duration(config.ConnMaxLifetime) * time.Second,
		LogLevel:        config.LogLevel,
	}
	if dbConfig.Type == "" {
		dbConfig.Type = "sqlite"
	}
	if dbConfig.Type == "sqlite" && dbConfig.DSN == "" {
		dbConfig.DSN = "data/quantforge.db"
	}

	switch dbConfig.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
		return NewGormDatabase(dbConfig)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbConfig.Type)
	}
}
