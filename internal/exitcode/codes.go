package exitcode

// Process exit codes for the exporter.
const (
	// Success - graceful shutdown after a signal
	Success = 0

	// ConfigError - missing or invalid configuration
	// Don't restart: fix the config first
	ConfigError = 1

	// StartupError - a dependency could not be initialized (listen port, database)
	// Restart may help once the dependency is available
	StartupError = 2

	// ServerError - the HTTP listener failed after startup
	ServerError = 3
)
