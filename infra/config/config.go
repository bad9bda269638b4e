// Package config - настройки контроллера и агента: файл, FUZZCTL_* и флаги cobra через viper
package config

import (
	"strings"
	"time"

	"fuzzctl/infra/conn/tcp"
	"fuzzctl/infra/target"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "FUZZCTL"

const (
	KeyMonitorHost           = "monitor.host"
	KeyMonitorPort           = "monitor.port"
	KeyMonitorConnectTimeout = "monitor.connect_timeout"
	KeyMonitorIOTimeout      = "monitor.io_timeout"
	KeyMonitorVersion        = "monitor.version"

	KeyAgentListen  = "agent.listen"
	KeyAgentTarget  = "agent.target"
	KeyAgentArgs    = "agent.args"
	KeyAgentTimeout = "agent.timeout"
	KeyAgentParams  = "agent.allowed_params"

	KeyMetricsAddr = "metrics.addr"
	KeyCrashesDir  = "crashes.dir"
	KeyLogLevel    = "log.level"

	KeyCampaignReconnects = "campaign.reconnects"
	KeyCampaignParams     = "campaign.params"
)

type Monitor struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	IOTimeout      time.Duration
	Version        uint64
}

type Agent struct {
	Listen        string
	Target        string
	Args          []string
	Timeout       time.Duration
	AllowedParams []string
}

type Campaign struct {
	Reconnects int
	Params     map[string]string
}

type Config struct {
	Monitor     Monitor
	Agent       Agent
	Campaign    Campaign
	MetricsAddr string
	CrashesDir  string
	LogLevel    string
}

// Connector - настройки коннектора из конфига
func (c Config) Connector() tcp.Config {
	return tcp.Config{
		ConnectTimeout: c.Monitor.ConnectTimeout,
		IOTimeout:      c.Monitor.IOTimeout,
		Version:        c.Monitor.Version,
	}
}

// New - viper с дефолтами и окружением, флаги привязывает вызывающий
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyMonitorHost, "127.0.0.1")
	v.SetDefault(KeyMonitorPort, 4444)
	v.SetDefault(KeyMonitorConnectTimeout, tcp.DefaultConnectTimeout)
	v.SetDefault(KeyMonitorIOTimeout, tcp.DefaultIOTimeout)
	v.SetDefault(KeyMonitorVersion, tcp.DefaultVersion)
	v.SetDefault(KeyAgentListen, "127.0.0.1:4444")
	v.SetDefault(KeyAgentTimeout, target.DefaultTimeout)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyCrashesDir, "crashes")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyCampaignReconnects, 3)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load - читает файл, если он задан, и собирает Config
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", file)
		}
	}
	cfg := Config{
		Monitor: Monitor{
			Host:           v.GetString(KeyMonitorHost),
			Port:           v.GetInt(KeyMonitorPort),
			ConnectTimeout: v.GetDuration(KeyMonitorConnectTimeout),
			IOTimeout:      v.GetDuration(KeyMonitorIOTimeout),
			Version:        v.GetUint64(KeyMonitorVersion),
		},
		Agent: Agent{
			Listen:        v.GetString(KeyAgentListen),
			Target:        v.GetString(KeyAgentTarget),
			Args:          v.GetStringSlice(KeyAgentArgs),
			Timeout:       v.GetDuration(KeyAgentTimeout),
			AllowedParams: v.GetStringSlice(KeyAgentParams),
		},
		Campaign: Campaign{
			Reconnects: v.GetInt(KeyCampaignReconnects),
			Params:     v.GetStringMapString(KeyCampaignParams),
		},
		MetricsAddr: v.GetString(KeyMetricsAddr),
		CrashesDir:  v.GetString(KeyCrashesDir),
		LogLevel:    v.GetString(KeyLogLevel),
	}
	if cfg.Monitor.ConnectTimeout <= 0 || cfg.Monitor.IOTimeout <= 0 {
		return Config{}, errors.Errorf("monitor timeouts must be positive, got connect=%v io=%v",
			cfg.Monitor.ConnectTimeout, cfg.Monitor.IOTimeout)
	}
	// зависшая цель должна вернуться таймаутом до того, как контроллер сочтет связь потерянной
	if cfg.Agent.Timeout <= 0 || cfg.Agent.Timeout >= cfg.Monitor.IOTimeout {
		return Config{}, errors.Errorf("agent timeout %v must be positive and below monitor io timeout %v",
			cfg.Agent.Timeout, cfg.Monitor.IOTimeout)
	}
	return cfg, nil
}
