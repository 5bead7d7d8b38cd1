package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
	return dir
}

func clearAzureEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AZURE_CLIENT_ID", "AZURE_TENANT_ID", "AZURE_CLIENT_SECRET", "AZURE_REDIRECT_URI", "AZURE_SCOPES"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaultsWhenFileAbsent(t *testing.T) {
	clearAzureEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultTenantID, cfg.Azure.TenantID)
	assert.Equal(t, DefaultRedirectURI, cfg.Azure.RedirectURI)
	assert.Equal(t, DefaultScopes, cfg.Azure.Scopes)
	assert.Equal(t, DefaultTransport, cfg.Server.Transport)
	assert.Empty(t, cfg.Azure.ClientID)
}

func TestLoadConfigReadsYAML(t *testing.T) {
	clearAzureEnv(t)

	dir := writeConfig(t, `
azure:
  clientId: app-123
  tenantId: contoso.onmicrosoft.com
  clientSecret: s3cret
  redirectUri: http://localhost:9000/callback
  scopes:
    - https://graph.microsoft.com/Chat.ReadWrite
server:
  transport: sse
  listenAddr: localhost:9000
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "app-123", cfg.Azure.ClientID)
	assert.Equal(t, "contoso.onmicrosoft.com", cfg.Azure.TenantID)
	assert.Equal(t, "s3cret", cfg.Azure.ClientSecret)
	assert.Equal(t, "http://localhost:9000/callback", cfg.Azure.RedirectURI)
	assert.Equal(t, []string{"https://graph.microsoft.com/Chat.ReadWrite"}, cfg.Azure.Scopes)
	assert.Equal(t, "sse", cfg.Server.Transport)
	assert.Equal(t, "localhost:9000", cfg.Server.ListenAddr)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	clearAzureEnv(t)

	dir := writeConfig(t, "azure: [not a mapping")
	_, err := LoadConfig(dir)
	require.Error(t, err)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	clearAzureEnv(t)

	dir := writeConfig(t, `
azure:
  clientId: from-file
  tenantId: file-tenant
`)
	t.Setenv("AZURE_CLIENT_ID", "from-env")
	t.Setenv("AZURE_TENANT_ID", "env-tenant")
	t.Setenv("AZURE_SCOPES", "User.Read offline_access")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Azure.ClientID)
	assert.Equal(t, "env-tenant", cfg.Azure.TenantID)
	assert.Equal(t, []string{"User.Read", "offline_access"}, cfg.Azure.Scopes)
}

func TestLoadConfigFillsEmptyFields(t *testing.T) {
	clearAzureEnv(t)

	dir := writeConfig(t, `
azure:
  clientId: app-123
  tenantId: ""
server:
  transport: ""
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultTenantID, cfg.Azure.TenantID)
	assert.Equal(t, DefaultTransport, cfg.Server.Transport)
}

func TestValidate(t *testing.T) {
	cfg := GetDefaultConfig()
	require.Error(t, cfg.Validate(), "missing client id must fail")

	cfg.Azure.ClientID = "app-123"
	require.NoError(t, cfg.Validate())

	cfg.Server.Transport = "carrier-pigeon"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}
