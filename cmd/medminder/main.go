// Medminder tracks household medications: doses, inventory and refills,
// with reminders delivered over MQTT.
//
// Configuration is YAML (see configs/config.yaml) with MEDMINDER_* environment
// overrides. Run "medminder serve" to start the service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx)
	cancel()
	os.Exit(code)
}
