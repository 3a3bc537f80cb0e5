package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogPretty         bool          `mapstructure:"log_pretty" yaml:"log_pretty"`

	JWT      JWT      `mapstructure:"jwt" yaml:"jwt"`
	Channel  Channel  `mapstructure:"channel" yaml:"channel"`
	Reminder Reminder `mapstructure:"reminder" yaml:"reminder"`
	AMQP     AMQP     `mapstructure:"amqp" yaml:"amqp"`
}

// JWT configures credential verification and issuance.
type JWT struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Channel configures the real-time publish path.
type Channel struct {
	// EchoSender controls whether a published message is also delivered
	// back to the sender's own connection.
	EchoSender  bool `mapstructure:"echo_sender" yaml:"echo_sender"`
	EventBuffer int  `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// Reminder configures the rent reminder sweep.
type Reminder struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// At is the wall-clock offset ("HH:MM") within the interval at which
	// the first sweep fires.
	At          string        `mapstructure:"at" yaml:"at"`
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	LeaseStatus string        `mapstructure:"lease_status" yaml:"lease_status"`
}

// AMQP configures the offline notification sink. An empty URL disables it.
type AMQP struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "rentwire.db",
		LogLevel:          "info",
		LogPretty:         true,
		JWT: JWT{
			Issuer:   "rentwire",
			Audience: "rentwire-api",
			TTL:      24 * time.Hour,
		},
		Channel: Channel{
			EchoSender:  true,
			EventBuffer: 16,
		},
		Reminder: Reminder{
			Interval:    24 * time.Hour,
			At:          "00:00",
			GracePeriod: 30 * 24 * time.Hour,
			LeaseStatus: "Active",
		},
		AMQP: AMQP{
			Exchange: "rentwire.notifications",
		},
	}
}
