// Package config holds the startup configuration of the coordinator and agent
// daemons. Values come from defaults, then COSCHED_* environment variables
// (optionally seeded from an env file), then explicitly set flags. The daemons
// only consume a configuration that passed Validate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/protocol"
)

const (
	DefaultGuaranteed           = 400 * time.Millisecond
	DefaultInComm               = 100 * time.Millisecond
	DefaultCheckInterval        = time.Millisecond
	DefaultSendTimeout          = 50 * time.Millisecond
	DefaultMaxSignalConcurrency = 64
	DefaultLogLevel             = "error"
)

// Environment variable names.
const (
	EnvCoordinatorAddr      = "COSCHED_COORDINATOR_ADDR"
	EnvCoordinatorPort      = "COSCHED_COORDINATOR_PORT"
	EnvAgentAddrs           = "COSCHED_AGENT_ADDRS"
	EnvAgentPort            = "COSCHED_AGENT_PORT"
	EnvGuaranteed           = "COSCHED_GUARANTEED"
	EnvInComm               = "COSCHED_IN_COMM"
	EnvCheckInterval        = "COSCHED_CHECK_INTERVAL"
	EnvSendTimeout          = "COSCHED_SEND_TIMEOUT"
	EnvMaxSignalConcurrency = "COSCHED_MAX_SIGNAL_CONCURRENCY"
	EnvPruneDead            = "COSCHED_PRUNE_DEAD"
	EnvHTTPAddr             = "COSCHED_HTTP_ADDR"
	EnvLogLevel             = "COSCHED_LOG_LEVEL"
)

// ConfigError reports an invalid startup configuration. It is always fatal.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(string) (string, bool)

// LoadEnvFile seeds the process environment from a dotenv file. Variables
// already present in the environment are left alone. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &ConfigError{Field: "env_file", Reason: errors.Wrapf(err, "loading %s", path).Error()}
	}
	log.Debugf("loaded environment from %s", path)
	return nil
}

// CoordinatorConfig configures the coordinator daemon.
type CoordinatorConfig struct {
	// Port the coordinator binds.
	Port int `json:"Port"`
	// Every node agent host, all listening on AgentPort.
	AgentAddrs []string `json:"AgentAddrs"`
	AgentPort  int      `json:"AgentPort"`

	// Guaranteed < 0 turns job switching off.
	Guaranteed    time.Duration `json:"Guaranteed"`
	InComm        time.Duration `json:"InComm"`
	CheckInterval time.Duration `json:"CheckInterval"`
	SendTimeout   time.Duration `json:"SendTimeout"`

	HTTPAddr string `json:"HTTPAddr"`
	LogLevel string `json:"LogLevel"`
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Port:          protocol.DefaultCoordinatorPort,
		AgentPort:     protocol.DefaultAgentPort,
		Guaranteed:    DefaultGuaranteed,
		InComm:        DefaultInComm,
		CheckInterval: DefaultCheckInterval,
		SendTimeout:   DefaultSendTimeout,
		LogLevel:      DefaultLogLevel,
	}
}

func (c CoordinatorConfig) String() string {
	return fmt.Sprintf("CoordinatorConfig: Port: %d, AgentAddrs: %v, AgentPort: %d, Guaranteed: %s, InComm: %s, "+
		"CheckInterval: %s, SendTimeout: %s, HTTPAddr: %q, LogLevel: %s",
		c.Port, c.AgentAddrs, c.AgentPort, c.Guaranteed, c.InComm,
		c.CheckInterval, c.SendTimeout, c.HTTPAddr, c.LogLevel)
}

// ApplyEnv overrides fields from COSCHED_* variables found by lookup.
func (c *CoordinatorConfig) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}
	e.setInt(EnvCoordinatorPort, &c.Port)
	e.setList(EnvAgentAddrs, &c.AgentAddrs)
	e.setInt(EnvAgentPort, &c.AgentPort)
	e.setDuration(EnvGuaranteed, &c.Guaranteed)
	e.setDuration(EnvInComm, &c.InComm)
	e.setDuration(EnvCheckInterval, &c.CheckInterval)
	e.setDuration(EnvSendTimeout, &c.SendTimeout)
	e.setString(EnvHTTPAddr, &c.HTTPAddr)
	e.setString(EnvLogLevel, &c.LogLevel)
	return e.err
}

func (c CoordinatorConfig) Validate() error {
	if err := validBindPort("Port", c.Port); err != nil {
		return err
	}
	if len(c.AgentAddrs) == 0 {
		return invalid("AgentAddrs", "at least one agent address is required")
	}
	for i, a := range c.AgentAddrs {
		if strings.TrimSpace(a) == "" {
			return invalid("AgentAddrs", "entry %d is empty", i)
		}
	}
	if err := validPeerPort("AgentPort", c.AgentPort); err != nil {
		return err
	}
	if c.InComm <= 0 {
		return invalid("InComm", "must be positive, got %s", c.InComm)
	}
	if c.CheckInterval <= 0 {
		return invalid("CheckInterval", "must be positive, got %s", c.CheckInterval)
	}
	if c.SendTimeout <= 0 {
		return invalid("SendTimeout", "must be positive, got %s", c.SendTimeout)
	}
	return validLogLevel(c.LogLevel)
}

// AgentConfig configures a node agent daemon.
type AgentConfig struct {
	Port            int    `json:"Port"`
	CoordinatorAddr string `json:"CoordinatorAddr"`
	CoordinatorPort int    `json:"CoordinatorPort"`

	// Upper bound on concurrent signal deliveries per Stop/Cont.
	MaxSignalConcurrency int `json:"MaxSignalConcurrency"`
	// Drop pids whose process has exited from the registry.
	PruneDead   bool          `json:"PruneDead"`
	SendTimeout time.Duration `json:"SendTimeout"`

	HTTPAddr string `json:"HTTPAddr"`
	LogLevel string `json:"LogLevel"`
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Port:                 protocol.DefaultAgentPort,
		CoordinatorPort:      protocol.DefaultCoordinatorPort,
		MaxSignalConcurrency: DefaultMaxSignalConcurrency,
		PruneDead:            true,
		SendTimeout:          DefaultSendTimeout,
		LogLevel:             DefaultLogLevel,
	}
}

func (c AgentConfig) String() string {
	return fmt.Sprintf("AgentConfig: Port: %d, CoordinatorAddr: %s, CoordinatorPort: %d, MaxSignalConcurrency: %d, "+
		"PruneDead: %t, SendTimeout: %s, HTTPAddr: %q, LogLevel: %s",
		c.Port, c.CoordinatorAddr, c.CoordinatorPort, c.MaxSignalConcurrency,
		c.PruneDead, c.SendTimeout, c.HTTPAddr, c.LogLevel)
}

func (c *AgentConfig) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}
	e.setInt(EnvAgentPort, &c.Port)
	e.setString(EnvCoordinatorAddr, &c.CoordinatorAddr)
	e.setInt(EnvCoordinatorPort, &c.CoordinatorPort)
	e.setInt(EnvMaxSignalConcurrency, &c.MaxSignalConcurrency)
	e.setBool(EnvPruneDead, &c.PruneDead)
	e.setDuration(EnvSendTimeout, &c.SendTimeout)
	e.setString(EnvHTTPAddr, &c.HTTPAddr)
	e.setString(EnvLogLevel, &c.LogLevel)
	return e.err
}

func (c AgentConfig) Validate() error {
	if err := validBindPort("Port", c.Port); err != nil {
		return err
	}
	if strings.TrimSpace(c.CoordinatorAddr) == "" {
		return invalid("CoordinatorAddr", "a coordinator address is required")
	}
	if err := validPeerPort("CoordinatorPort", c.CoordinatorPort); err != nil {
		return err
	}
	if c.MaxSignalConcurrency < 1 {
		return invalid("MaxSignalConcurrency", "must be at least 1, got %d", c.MaxSignalConcurrency)
	}
	if c.SendTimeout <= 0 {
		return invalid("SendTimeout", "must be positive, got %s", c.SendTimeout)
	}
	return validLogLevel(c.LogLevel)
}

// port 0 binds an ephemeral port
func validBindPort(field string, port int) error {
	if port < 0 || port > 65535 {
		return invalid(field, "port %d out of range", port)
	}
	return nil
}

func validPeerPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return invalid(field, "port %d out of range", port)
	}
	return nil
}

func validLogLevel(level string) error {
	if _, err := log.ParseLevel(level); err != nil {
		return invalid("LogLevel", "%v", err)
	}
	return nil
}

// envReader applies env values and keeps the first parse failure.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(name)
	return strings.TrimSpace(v), ok
}

func (e *envReader) setString(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) setInt(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.err = invalid(name, "%q is not an integer", v)
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.err = invalid(name, "%q is not a boolean", v)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.err = invalid(name, "%q is not a duration", v)
			return
		}
		*dst = d
	}
}

func (e *envReader) setList(name string, dst *[]string) {
	if v, ok := e.get(name); ok {
		*dst = SplitList(v)
	}
}

// SplitList splits a comma separated host list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
