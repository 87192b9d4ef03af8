package pgmux

// Config is the engine configuration used by library mode via New().
type Config struct {
	Pool  PoolConfig  `json:"pool"`
	Query QueryConfig `json:"query"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Seeds   []SeedConfig   `json:"seeds"`
	Server  ServerSettings `json:"server"`
	Logging LoggingConfig  `json:"logging"`
}

// PoolConfig holds the pool settings applied to every registered connection.
type PoolConfig struct {
	MaxConns        int    `json:"max_conns"`
	MinConns        int    `json:"min_conns"`
	MaxConnLifetime string `json:"max_conn_lifetime"`
	MaxConnIdleTime string `json:"max_conn_idle_time"`
}

// QueryConfig holds execution settings shared by all operations.
type QueryConfig struct {
	DefaultTimeoutSeconds int           `json:"default_timeout_seconds"`
	TimeoutRules          []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SeedConfig describes a connection registered at server startup.
// Either ConnString is set, or it is built from the individual fields
// with credentials prompted interactively.
type SeedConfig struct {
	Name       string `json:"name"`
	ConnString string `json:"conn_string"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	DBName     string `json:"dbname"`
	SSLMode    string `json:"sslmode"`
}

// ServerSettings holds transport settings for CLI mode.
type ServerSettings struct {
	Transport          string `json:"transport"` // "stdio" (default) or "http"
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}
