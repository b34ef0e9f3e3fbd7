package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Flags holds the execution-mode defaults applied to every device context at
// startup. Omitted fields default to false.
type Flags struct {
	Quantized        bool `yaml:"quantized"`
	PrecomputedScale bool `yaml:"precomputedScale"`
	TensorCoreGemm   bool `yaml:"tensorCoreGemm"`
	Fused            bool `yaml:"fused"`
	MatrixDump       bool `yaml:"matrixDump"`
}

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Backend struct {
		Devices []int  `yaml:"devices"`
		Seed    uint64 `yaml:"seed"`
		Flags   Flags  `yaml:"flags"`
	} `yaml:"backend"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when a field is absent from the
// config file: one context on device 0, info logging, metrics on :9090.
func Default() *Config {
	cfg := &Config{}
	cfg.Logger.Verbosity = "info"
	cfg.Backend.Devices = []int{0}
	cfg.Backend.Seed = 42
	cfg.Metrics.ListenAddress = ":9090"
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
