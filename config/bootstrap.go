package config

import (
	"github.com/jcooky/go-din"
)

type BootstrapConfig struct {
	ProfilePath  string `env:"PROFILE_PATH" yaml:"profilePath"`
	ArtifactsDir string `env:"ARTIFACTS_DIR" yaml:"artifactsDir"`
}

func NewBootstrapConfig() *BootstrapConfig {
	return &BootstrapConfig{
		ProfilePath:  "inputs/user_profile.txt",
		ArtifactsDir: "generated",
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*BootstrapConfig, error) {
		conf := NewBootstrapConfig()
		return conf, resolveConfig(conf, "bootstrap", c.Env == din.EnvTest)
	})
}
