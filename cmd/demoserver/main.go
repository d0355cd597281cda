// Command demoserver starts the miru fixture server: a set of deterministic
// pages with known-good and known-broken visual states to run suites against.
// Usage: go run ./cmd/demoserver [port]
// Default port: 8400
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/miru/internal/demoserver"
)

func main() {
	cfg := demoserver.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("miru fixture server")
	fmt.Println("Pages under /static/passing render the state their questions expect;")
	fmt.Println("pages under /static/failing render a deliberately broken state.")
	fmt.Println()

	server := demoserver.NewDemoServer(cfg)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
