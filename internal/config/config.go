package config

// ConfigError is a problem with the config file or with a dotted config
// path supplied on the command line.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Message
}

// Defaults is the configuration perch runs with before the config file
// and PERCH_* environment overrides are layered on top.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 17871,
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		History: HistoryConfig{
			Enabled: true,
			Keep:    200,
		},
	}
}
