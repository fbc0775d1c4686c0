package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// Format represents the format of the config file.
type Format uint8

const (
	// FormatYAML represents a Config written in YAML format.
	FormatYAML Format = iota
)

// ParseFile reads the content of a file and attempts to unmarshal it into a
// Config.
func ParseFile(filename string) (c Config, err error) {
	var (
		t         Format
		fileBytes []byte
	)

	// Figure out what type of config file we provided
	t, err = GetTypeFromFileExtension(filename)
	if err != nil {
		return
	}

	// Read the content of the config file
	fileBytes, err = os.ReadFile(filepath.Clean(filename))
	if err != nil {
		return
	}

	// Parse the content and return Config
	return Parse(t, fileBytes)
}

// Parse unmarshals the provided bytes into a Config and applies the derived
// defaults which depend on other fields.
func Parse(f Format, bytes []byte) (Config, error) {
	cfg := New()

	switch f {
	case FormatYAML:
		if err := yaml.Unmarshal(bytes, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parsing yaml config")
		}
	default:
		return cfg, fmt.Errorf("unsupported config type '%+v'", f)
	}

	applyDerivedDefaults(&cfg)

	return cfg, cfg.Validate()
}

// GetTypeFromFileExtension returns the Format based upon the extension of the
// file.
func GetTypeFromFileExtension(filename string) (f Format, err error) {
	switch ext := filepath.Ext(filename); ext {
	case ".yml", ".yaml":
		f = FormatYAML
	default:
		err = fmt.Errorf("config file extension '%s' is not supported, expecting .yml or .yaml", ext)
	}

	return
}

// applyDerivedDefaults fills in the fields whose default values depend upon
// other configured fields and therefore cannot be expressed as struct tags.
func applyDerivedDefaults(cfg *Config) {
	if cfg.Platform.HealthURL == "" && cfg.Platform.URL != "" {
		cfg.Platform.HealthURL = strings.TrimSuffix(cfg.Platform.URL, "/") + "/api/2.0/serving-endpoints"
	}

	if cfg.Model.ExperimentPath == "" {
		cfg.Model.ExperimentPath = cfg.Model.DefaultExperimentPath()
	}

	if cfg.Deployment.EndpointName == "" {
		cfg.Deployment.EndpointName = fmt.Sprintf("%s-%s", cfg.Model.Name, cfg.Model.Env)
	}

	if len(cfg.Validation.CanaryQueries) == 0 {
		cfg.Validation.CanaryQueries = DefaultCanaryQueries()
	}

	if len(cfg.SmokeTest.Cases) == 0 {
		cfg.SmokeTest.Cases = DefaultSmokeTestCases()
	}

	if cfg.Monitoring.Enabled && len(cfg.Monitoring.BuiltinScorers) == 0 && len(cfg.Monitoring.CustomScorers) == 0 {
		cfg.Monitoring.BuiltinScorers = DefaultBuiltinScorers()
	}
}

// DefaultCanaryQueries returns the queries run through the model before any
// serving resource is committed, when none are configured.
func DefaultCanaryQueries() []schemas.AgentQuery {
	return []schemas.AgentQuery{
		{
			Description: "general plan inquiry",
			Input: []schemas.Message{
				{Role: "user", Content: "What plans do you offer?"},
			},
		},
	}
}

// DefaultSmokeTestCases returns the cases issued against the live endpoint
// after a deployment, when none are configured.
func DefaultSmokeTestCases() []schemas.AgentQuery {
	return []schemas.AgentQuery{
		{
			Description:  "account scoped usage question",
			Input:        []schemas.Message{{Role: "user", Content: "How much data do I have left this month?"}},
			CustomInputs: map[string]string{"customer": "CUS-10001"},
		},
		{
			Description:  "roaming charges question",
			Input:        []schemas.Message{{Role: "user", Content: "What are the roaming charges when travelling to Canada?"}},
			CustomInputs: map[string]string{"customer": "CUS-10002"},
		},
		{
			Description:  "connectivity troubleshooting",
			Input:        []schemas.Message{{Role: "user", Content: "My internet is not working, can you help me troubleshoot?"}},
			CustomInputs: map[string]string{"customer": "CUS-10003"},
		},
	}
}

// DefaultBuiltinScorers returns the scorer set registered when monitoring is
// enabled without an explicit scorer configuration.
func DefaultBuiltinScorers() []schemas.ScorerSpec {
	return []schemas.ScorerSpec{
		{Name: "safety", SampleRate: 0.8},
	}
}

// ToYAML returns the configuration in YAML format with the platform token
// masked, suitable for displaying or logging.
func (c Config) ToYAML() string {
	c.Global = Global{}
	c.Platform.Token = "*******"

	b, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}

	return string(b)
}
