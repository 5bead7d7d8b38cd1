// Package config loads the server configuration from config.yaml with
// environment variable overrides for the Azure app registration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"teamsmcp/pkg/logging"
)

const (
	userConfigDir  = ".config/teams-mcp"
	configFileName = "config.yaml"
)

// Defaults applied when config.yaml or individual fields are absent.
const (
	DefaultTenantID    = "common"
	DefaultRedirectURI = "http://localhost:3000/auth/callback"
	DefaultTransport   = "stdio"
	DefaultListenAddr  = "localhost:8090"
)

// DefaultScopes are the Graph delegated permissions the server requests.
var DefaultScopes = []string{
	"https://graph.microsoft.com/Chat.ReadWrite",
	"https://graph.microsoft.com/ChatMessage.Send",
	"https://graph.microsoft.com/User.Read",
	"offline_access",
}

// AzureConfig is the Azure AD app registration used for OAuth2.
type AzureConfig struct {
	ClientID     string   `yaml:"clientId"`
	TenantID     string   `yaml:"tenantId"`
	ClientSecret string   `yaml:"clientSecret"`
	RedirectURI  string   `yaml:"redirectUri"`
	Scopes       []string `yaml:"scopes"`
}

// ServerConfig controls the MCP transport.
type ServerConfig struct {
	Transport  string `yaml:"transport"`
	ListenAddr string `yaml:"listenAddr"`
}

// Config is the full server configuration.
type Config struct {
	Azure  AzureConfig  `yaml:"azure"`
	Server ServerConfig `yaml:"server"`
}

// GetDefaultConfigPathOrPanic returns ~/.config/teams-mcp.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(homeDir, userConfigDir)
}

// GetDefaultConfig returns the configuration defaults. The Azure client id
// has no default and must come from config.yaml or AZURE_CLIENT_ID.
func GetDefaultConfig() Config {
	return Config{
		Azure: AzureConfig{
			TenantID:    DefaultTenantID,
			RedirectURI: DefaultRedirectURI,
			Scopes:      append([]string(nil), DefaultScopes...),
		},
		Server: ServerConfig{
			Transport:  DefaultTransport,
			ListenAddr: DefaultListenAddr,
		},
	}
}

// LoadConfig loads configuration from the specified directory's config.yaml,
// falling back to defaults when the file is absent, then applies AZURE_*
// environment overrides.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			applyEnvOverrides(&config)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	applyEnvOverrides(&config)
	fillDefaults(&config)
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// applyEnvOverrides lets environment variables win over config.yaml, so the
// server can run without any config file in containerized setups.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("AZURE_CLIENT_ID"); v != "" {
		config.Azure.ClientID = v
	}
	if v := os.Getenv("AZURE_TENANT_ID"); v != "" {
		config.Azure.TenantID = v
	}
	if v := os.Getenv("AZURE_CLIENT_SECRET"); v != "" {
		config.Azure.ClientSecret = v
	}
	if v := os.Getenv("AZURE_REDIRECT_URI"); v != "" {
		config.Azure.RedirectURI = v
	}
	if v := os.Getenv("AZURE_SCOPES"); v != "" {
		config.Azure.Scopes = strings.Fields(v)
	}
}

// fillDefaults restores defaults for fields the config file set to empty.
func fillDefaults(config *Config) {
	if config.Azure.TenantID == "" {
		config.Azure.TenantID = DefaultTenantID
	}
	if config.Azure.RedirectURI == "" {
		config.Azure.RedirectURI = DefaultRedirectURI
	}
	if len(config.Azure.Scopes) == 0 {
		config.Azure.Scopes = append([]string(nil), DefaultScopes...)
	}
	if config.Server.Transport == "" {
		config.Server.Transport = DefaultTransport
	}
	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = DefaultListenAddr
	}
}

// Validate checks that the configuration can drive an OAuth2 flow.
func (c Config) Validate() error {
	if c.Azure.ClientID == "" {
		return fmt.Errorf("azure client id is required (set azure.clientId or AZURE_CLIENT_ID)")
	}
	switch c.Server.Transport {
	case "stdio", "sse", "streamable-http":
	default:
		return fmt.Errorf("unsupported transport %q (expected stdio, sse or streamable-http)", c.Server.Transport)
	}
	return nil
}
