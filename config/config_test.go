package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_DSN", "EXPIRY_WINDOW_DAYS", "EXPIRY_SWEEP_INTERVAL", "CORS_ORIGINS", "ENABLE_SCENARIOS", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	c, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, 30, c.ExpiryWindowDays)
	assert.Equal(t, time.Hour, c.ExpirySweepInterval)
	assert.Len(t, c.CORSOrigins, 2)
	assert.False(t, c.EnableScenarios)
	assert.Error(t, c.Validate(), "JWT_SECRET has no default")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_DSN", "u:p@tcp(db:3306)/broker")
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("EXPIRY_WINDOW_DAYS", "45")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "15m")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("ENABLE_SCENARIOS", "true")

	c, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, 9000, c.Port)
	assert.Equal(t, 45, c.ExpiryWindowDays)
	assert.Equal(t, 15*time.Minute, c.ExpirySweepInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.True(t, c.EnableScenarios)
	assert.NoError(t, c.Validate())
}

func TestFromEnv_RejectsBadNumbers(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := fromEnv()
	assert.Error(t, err)

	t.Setenv("PORT", "")
	t.Setenv("EXPIRY_WINDOW_DAYS", "-1")
	_, err = fromEnv()
	assert.Error(t, err)
}

func TestValidate_UnknownDriver(t *testing.T) {
	c := Config{DBDriver: "oracle", JWTSecret: "x"}
	assert.Error(t, c.Validate())
}

func TestNewLogger_JSONWithLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", &buf)

	logger.Info("hidden")
	LogError(logger, "importer", "ImportXLSX", map[string]int{"row": 3}, errors.New("bad row"))

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bad row", entry["msg"])
	assert.Equal(t, "importer", entry["module"])
	assert.Equal(t, "ImportXLSX", entry["funcName"])
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, newLogger("chatty", &bytes.Buffer{}).GetLevel())
}
