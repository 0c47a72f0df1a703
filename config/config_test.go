package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func env(vals map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}
}

func TestCoordinatorDefaultsNeedAgents(t *testing.T) {
	c := DefaultCoordinatorConfig()
	err := c.Validate()
	if assert.Error(t, err) {
		cerr, ok := err.(*ConfigError)
		assert.True(t, ok)
		assert.Equal(t, "AgentAddrs", cerr.Field)
	}

	c.AgentAddrs = []string{"node1", "node2"}
	assert.NoError(t, c.Validate())
	assert.Equal(t, 400*time.Millisecond, c.Guaranteed)
	assert.Equal(t, 100*time.Millisecond, c.InComm)
	assert.Equal(t, time.Millisecond, c.CheckInterval)
}

func TestCoordinatorNegativeGuaranteedIsValid(t *testing.T) {
	c := DefaultCoordinatorConfig()
	c.AgentAddrs = []string{"node1"}
	c.Guaranteed = -time.Millisecond
	assert.NoError(t, c.Validate())
}

func TestCoordinatorValidate(t *testing.T) {
	cases := map[string]func(*CoordinatorConfig){
		"Port":          func(c *CoordinatorConfig) { c.Port = 70000 },
		"AgentPort":     func(c *CoordinatorConfig) { c.AgentPort = 0 },
		"AgentAddrs":    func(c *CoordinatorConfig) { c.AgentAddrs = []string{"node1", " "} },
		"InComm":        func(c *CoordinatorConfig) { c.InComm = 0 },
		"CheckInterval": func(c *CoordinatorConfig) { c.CheckInterval = -1 },
		"SendTimeout":   func(c *CoordinatorConfig) { c.SendTimeout = 0 },
		"LogLevel":      func(c *CoordinatorConfig) { c.LogLevel = "loud" },
	}
	for field, mutate := range cases {
		c := DefaultCoordinatorConfig()
		c.AgentAddrs = []string{"node1"}
		mutate(&c)
		err := c.Validate()
		if assert.Error(t, err, field) {
			assert.Equal(t, field, err.(*ConfigError).Field)
		}
	}
}

func TestCoordinatorApplyEnv(t *testing.T) {
	c := DefaultCoordinatorConfig()
	err := c.ApplyEnv(env(map[string]string{
		EnvCoordinatorPort: "9000",
		EnvAgentAddrs:      "node1, node2,,node3",
		EnvGuaranteed:      "-1ms",
		EnvLogLevel:        "debug",
	}))
	assert.NoError(t, err)
	assert.Equal(t, 9000, c.Port)
	assert.Equal(t, []string{"node1", "node2", "node3"}, c.AgentAddrs)
	assert.Equal(t, -time.Millisecond, c.Guaranteed)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, DefaultInComm, c.InComm)
}

func TestApplyEnvParseFailure(t *testing.T) {
	c := DefaultCoordinatorConfig()
	err := c.ApplyEnv(env(map[string]string{EnvInComm: "soon"}))
	if assert.Error(t, err) {
		assert.Equal(t, EnvInComm, err.(*ConfigError).Field)
	}

	a := DefaultAgentConfig()
	err = a.ApplyEnv(env(map[string]string{EnvPruneDead: "maybe"}))
	if assert.Error(t, err) {
		assert.Equal(t, EnvPruneDead, err.(*ConfigError).Field)
	}
}

func TestAgentConfig(t *testing.T) {
	a := DefaultAgentConfig()
	assert.Error(t, a.Validate())

	err := a.ApplyEnv(env(map[string]string{
		EnvCoordinatorAddr:      "head-node",
		EnvAgentPort:            "0",
		EnvMaxSignalConcurrency: "8",
		EnvPruneDead:            "false",
	}))
	assert.NoError(t, err)
	assert.NoError(t, a.Validate())
	assert.Equal(t, "head-node", a.CoordinatorAddr)
	assert.Equal(t, 0, a.Port)
	assert.Equal(t, 8, a.MaxSignalConcurrency)
	assert.False(t, a.PruneDead)

	a.MaxSignalConcurrency = 0
	assert.Error(t, a.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(""))

	err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if assert.Error(t, err) {
		assert.Equal(t, "env_file", err.(*ConfigError).Field)
	}

	path := filepath.Join(t.TempDir(), "cosched.env")
	assert.NoError(t, os.WriteFile(path, []byte("COSCHED_TEST_ONLY_VALUE=from-file\n"), 0644))
	defer os.Unsetenv("COSCHED_TEST_ONLY_VALUE")
	assert.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("COSCHED_TEST_ONLY_VALUE"))
}
