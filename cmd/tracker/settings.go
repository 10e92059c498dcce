package main

import (
	"strings"
	"time"
)

type Settings struct {
	Port           int    `env:"PORT,default=8000"`
	BasePath       string `env:"BASE_PATH"`
	InternalSecret string `env:"INTERNAL_SECRET,required=true"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	LogEncoding string `env:"LOG_ENCODING,default=console"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	HeartbeatIntervalSeconds int `env:"HEARTBEAT_INTERVAL_SECONDS,default=30"`
	SendBufferSize           int `env:"SEND_BUFFER_SIZE,default=64"`
	ShutdownTimeoutSeconds   int `env:"SHUTDOWN_TIMEOUT_SECONDS,default=30"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE,default=delivery"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisChannelPrefix string `env:"REDIS_CHANNEL_PREFIX,default=tracker:"`
}

func (s Settings) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatIntervalSeconds) * time.Second
}

func (s Settings) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

func (s Settings) Origins() []string {
	if s.AllowedOrigins == "" {
		return nil
	}

	return strings.Split(s.AllowedOrigins, ",")
}
