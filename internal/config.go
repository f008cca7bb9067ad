package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host              string        `env:"HOST"`
	Port              int           `env:"PORT,required=true"`
	TLSCertFile       string        `env:"TLS_CERT_FILE"`
	TLSKeyFile        string        `env:"TLS_KEY_FILE"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	KeepAliveInterval time.Duration `env:"KEEPALIVE_INTERVAL,default=20s"`
	StreamBufferSize  int           `env:"STREAM_BUFFER_SIZE,default=32"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
}

// ValidateTLS enforces the both-or-neither rule on the credential pair.
func (c Config) ValidateTLS() error {
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf(
			"TLS_CERT_FILE and TLS_KEY_FILE must be set together, got cert=%q key=%q",
			c.TLSCertFile, c.TLSKeyFile,
		)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
