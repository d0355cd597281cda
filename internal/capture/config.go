package capture

import "time"

type Config struct {
	// IdleAfter is how long the network must stay quiet before a page is
	// considered fully rendered.
	IdleAfter time.Duration

	// NavTimeout bounds a single navigation plus render wait.
	NavTimeout time.Duration

	// DefaultViewport applies when a Target does not set one.
	DefaultViewport Viewport

	// Headless controls whether the browser window is shown. Keep true for
	// deterministic captures.
	Headless bool
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		IdleAfter:       2 * time.Second,
		NavTimeout:      30 * time.Second,
		DefaultViewport: Viewport{Width: 1280, Height: 720},
		Headless:        true,
	}
}
