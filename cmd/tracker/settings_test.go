package main

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_Defaults(t *testing.T) {
	t.Setenv("INTERNAL_SECRET", "s3cret")

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	require.NoError(t, err)

	assert.Equal(t, 8000, settings.Port)
	assert.Equal(t, "s3cret", settings.InternalSecret)
	assert.Equal(t, 30*time.Second, settings.HeartbeatInterval())
	assert.Equal(t, 64, settings.SendBufferSize)
	assert.Equal(t, "delivery", settings.MongoDatabase)
	assert.Equal(t, "tracker:", settings.RedisChannelPrefix)
	assert.Empty(t, settings.Origins())
}

func TestSettings_Origins(t *testing.T) {
	settings := Settings{AllowedOrigins: "https://a.example,https://b.example"}

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, settings.Origins())
}

func TestBuildZapLogger(t *testing.T) {
	logger, err := buildZapLogger("json", "debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = buildZapLogger("console", "loud")
	assert.Error(t, err)
}
