package demoserver

// Config holds configuration for the fixture page server.
type Config struct {
	// Port is the port on which the server listens.
	Port int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port: 8400,
	}
}
