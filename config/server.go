package config

import (
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/jcooky/go-din"
)

type ServerConfig struct {
	Host string `env:"HOST" yaml:"host"`
	Port int    `env:"PORT" yaml:"port"`

	// CORSOrigins lists the origins allowed to call the API from a browser
	// Default: ["*"]
	CORSOrigins []string `env:"CORS_ORIGINS" yaml:"corsOrigins"`

	// ReconcileInterval is how often the server replays the graph outbox
	// Zero disables the background reconciler
	// Default: 5m
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" yaml:"reconcileInterval"`
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:              "0.0.0.0",
		Port:              8000,
		CORSOrigins:       []string{"*"},
		ReconcileInterval: 5 * time.Minute,
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrapf(errors.ErrInvalidConfig, "port %d out of range", c.Port)
	}
	return nil
}

func init() {
	din.RegisterT(func(c *din.Container) (*ServerConfig, error) {
		conf := NewServerConfig()
		if err := resolveConfig(conf, "server", c.Env == din.EnvTest); err != nil {
			return nil, err
		}
		return conf, conf.Validate()
	})
}
