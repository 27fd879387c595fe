package server

import (
	"fmt"

	"github.com/dotsync/dotsync/internal/server/auth"
	"github.com/dotsync/dotsync/internal/server/quota"
)

const (
	DefaultAddr     = "127.0.0.1:8080"
	DefaultDBPath   = "dotsync.db"
	DefaultHTTPRate = "120-M"
)

type Config struct {
	HTTP  HTTPConfig   `mapstructure:"http"`
	Auth  auth.Config  `mapstructure:"auth"`
	Quota quota.Config `mapstructure:"quota"`

	DBPath string `mapstructure:"db_path"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// per-IP request rate, "count-period" format e.g. "120-M"
	RateLimit string `mapstructure:"rate_limit"`
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.HTTP.RateLimit == "" {
		c.HTTP.RateLimit = DefaultHTTPRate
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.Quota.StorageCeiling <= 0 {
		c.Quota.StorageCeiling = quota.DefaultStorageCeiling
	}
	if c.Quota.PushRate == "" {
		c.Quota.PushRate = quota.DefaultPushRate
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	return nil
}
