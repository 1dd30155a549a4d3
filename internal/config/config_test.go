package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Referee.ID = "ref-1"
	return cfg
}

func TestValidateDefaultsWithReferee(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "chatty"
	cfg.Refbase.BaseURL = ""
	cfg.Referee.ID = ""
	cfg.Redis.Addr = ""

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "refbase: base_url")
	assert.Contains(t, err.Error(), "referee: id")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateHMACCredentialsMustPair(t *testing.T) {
	cfg := validConfig()
	cfg.Refbase.ClientID = "client-1"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id and client_secret")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REFX_REFEREE_ID", "ref-42")
	t.Setenv("REFX_SERVER_PORT", "9001")
	t.Setenv("REFX_ENGINE_STRICT_UNKNOWN", "true")
	t.Setenv("REFX_ENGINE_POOL_REFRESH_INTERVAL", "45s")
	t.Setenv("REFX_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "ref-42", cfg.Referee.ID)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.True(t, cfg.Engine.StrictUnknown)
	assert.Equal(t, "45s", cfg.Engine.PoolRefreshInterval.Duration.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestHomeCoord(t *testing.T) {
	var r RefereeConfig
	assert.Nil(t, r.HomeCoord(), "zero coordinates mean no home on record")

	r.HomeLat, r.HomeLng = 46.95, 7.45
	home := r.HomeCoord()
	require.NotNil(t, home)
	assert.Equal(t, 46.95, home.Lat)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Refbase.BearerToken = "secret-token"
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "api-key"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Refbase.BearerToken)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "secret-token", cfg.Refbase.BearerToken, "the original is untouched")
}
