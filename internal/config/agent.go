package config

import (
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentName         = "INSPECTOR_AGENT_NAME"
	EnvAgentProviderName = "INSPECTOR_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "INSPECTOR_AGENT_BASE_URL"
	EnvAgentToken        = "INSPECTOR_AGENT_TOKEN"
	EnvAgentDeployment   = "INSPECTOR_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "INSPECTOR_AGENT_API_VERSION"
	EnvAgentAuthType     = "INSPECTOR_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "INSPECTOR_AGENT_MODEL_NAME"
)

// AgentConfig selects the vision model provider. Unset fields fall back to
// the go-agents defaults.
type AgentConfig struct {
	Name       string `toml:"name"`
	Provider   string `toml:"provider"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Token      string `toml:"token"`
	Deployment string `toml:"deployment"`
	APIVersion string `toml:"api_version"`
	AuthType   string `toml:"auth_type"`
}

// Finalize applies environment variable overrides and validates the
// resulting go-agents configuration.
func (c *AgentConfig) Finalize() error {
	c.loadEnv()
	return validateAgent(c.Agent())
}

// Merge overwrites non-zero fields from overlay.
func (c *AgentConfig) Merge(overlay *AgentConfig) {
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.Deployment != "" {
		c.Deployment = overlay.Deployment
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.AuthType != "" {
		c.AuthType = overlay.AuthType
	}
}

// Agent returns the go-agents configuration: DefaultAgentConfig with the
// configured values merged over it.
func (c *AgentConfig) Agent() gaconfig.AgentConfig {
	overlay := gaconfig.AgentConfig{Name: c.Name}

	options := make(map[string]any)
	setOption := func(key, value string) {
		if value != "" {
			options[key] = value
		}
	}
	setOption("token", c.Token)
	setOption("deployment", c.Deployment)
	setOption("api_version", c.APIVersion)
	setOption("auth_type", c.AuthType)

	if c.Provider != "" || c.BaseURL != "" || len(options) > 0 {
		overlay.Provider = &gaconfig.ProviderConfig{
			Name:    c.Provider,
			BaseURL: c.BaseURL,
			Options: options,
		}
	}
	if c.Model != "" {
		overlay.Model = &gaconfig.ModelConfig{Name: c.Model}
	}

	cfg := gaconfig.DefaultAgentConfig()
	cfg.Merge(&overlay)
	return cfg
}

func (c *AgentConfig) loadEnv() {
	set := func(envVar string, field *string) {
		if v := os.Getenv(envVar); v != "" {
			*field = v
		}
	}

	set(EnvAgentName, &c.Name)
	set(EnvAgentProviderName, &c.Provider)
	set(EnvAgentBaseURL, &c.BaseURL)
	set(EnvAgentModelName, &c.Model)
	set(EnvAgentToken, &c.Token)
	set(EnvAgentDeployment, &c.Deployment)
	set(EnvAgentAPIVersion, &c.APIVersion)
	set(EnvAgentAuthType, &c.AuthType)
}

func validateAgent(c gaconfig.AgentConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider == nil {
		return fmt.Errorf("provider required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if c.Model == nil {
		return fmt.Errorf("model required")
	}
	return nil
}
