package config

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/eddieowens/axon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
	"k8s.io/client-go/tools/clientcmd"
)

const ConfigKey = "Config"

type Config struct {
	Server    Server    `mapstructure:"server"`
	Kube      Kube      `mapstructure:"kube"`
	Rollout   Rollout   `mapstructure:"rollout"`
	Probe     Probe     `mapstructure:"probe"`
	Snapshots Snapshots `mapstructure:"snapshots"`
	Log       Log       `mapstructure:"log"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	TimeFormat string `mapstructure:"timeformat"`
}

type Server struct {
	Port uint16 `mapstructure:"port"`
}

type Kube struct {
	Config    string `mapstructure:"config"`
	Context   string `mapstructure:"context"`
	Namespace string `mapstructure:"namespace"`
}

type Rollout struct {
	DefaultWeight    int32         `mapstructure:"defaultweight"`
	DefaultDuration  time.Duration `mapstructure:"defaultduration"`
	DefaultInterval  time.Duration `mapstructure:"defaultinterval"`
	DefaultThreshold float64       `mapstructure:"defaultthreshold"`
	MinSamples       int           `mapstructure:"minsamples"`
	ReadyTimeout     time.Duration `mapstructure:"readytimeout"`
	CallTimeout      time.Duration `mapstructure:"calltimeout"`
	RetryAttempts    int           `mapstructure:"retryattempts"`
	RetryDelay       time.Duration `mapstructure:"retrydelay"`
}

type Probe struct {
	Scheme  string        `mapstructure:"scheme"`
	Path    string        `mapstructure:"path"`
	Port    uint16        `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Snapshots struct {
	// Store selects where snapshots live: "kube" for ConfigMaps, "memory"
	// for a process-local store.
	Store     string `mapstructure:"store"`
	Retention int    `mapstructure:"retention"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Port: 8080,
		},
		Kube: Kube{
			Config: clientcmd.RecommendedHomeFile,
		},
		Rollout: Rollout{
			DefaultWeight:    10,
			DefaultDuration:  5 * time.Minute,
			DefaultInterval:  30 * time.Second,
			DefaultThreshold: 95,
			MinSamples:       5,
			ReadyTimeout:     2 * time.Minute,
			CallTimeout:      30 * time.Second,
			RetryAttempts:    4,
			RetryDelay:       500 * time.Millisecond,
		},
		Probe: Probe{
			Scheme:  "http",
			Path:    "/health",
			Port:    80,
			Timeout: 5 * time.Second,
		},
		Snapshots: Snapshots{
			Store:     "kube",
			Retention: 5,
		},
	}
}

func configFactory(_ axon.Injector, _ axon.Args) axon.Instance {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ramp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(false)

	b, _ := yaml.Marshal(defaultConfig())
	defaults := bytes.NewReader(b)
	if err := v.MergeConfig(defaults); err != nil {
		panic(err)
	}

	configPath := os.Getenv("RAMP_CONFIG_PATH")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.WithField("path", configPath).WithError(err).Debug("Failed to load config file")
			} else {
				panic(err)
			}
		}
	}

	v.AutomaticEnv()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		log.Fatal(err)
	}

	return axon.Any(config)
}
