package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		DBSSLMode:                "disable",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		ApprovalReapplyDays:      7,
		TracingSamplerRatio:      1,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with disable SSL mode", "prod", "disable", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateApprovalSettings(t *testing.T) {
	c := validConfig()
	c.ApprovalReapplyDays = -1
	assert.Error(t, c.Validate())

	c = validConfig()
	c.ApprovalReapplyDays = 0
	assert.NoError(t, c.Validate(), "zero cooldown is allowed")

	c = validConfig()
	c.DBSchemaMode = "yolo"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.DevBootstrapRoot = true
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.SeedDemo = true
	assert.Error(t, c.Validate())
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 7, c.ApprovalReapplyDays)
	assert.Equal(t, SchemaModeHybrid, c.DBSchemaMode)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := dir + "/.env"
	require.NoError(t, os.WriteFile(envFile, []byte("BIZDIR_DOTENV_A=from-file\nBIZDIR_DOTENV_B=from-file\n"), 0o600))
	t.Setenv("BIZDIR_DOTENV_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("BIZDIR_DOTENV_A") })

	n, err := loadDotEnv(envFile, dir+"/missing.env")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "from-file", os.Getenv("BIZDIR_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("BIZDIR_DOTENV_B"), "process environment wins")

	n, err = loadDotEnv(dir + "/none.env")
	require.NoError(t, err)
	assert.Zero(t, n)
}
