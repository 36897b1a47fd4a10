//go:build integration

package influxdb

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

// Requires a local InfluxDB 2.x at 127.0.0.1:8086.
func TestIntegration_WriteAndHealth(t *testing.T) {
	c, err := Connect(config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "medminder-dev-token",
		Org:           "medminder",
		Bucket:        "medminder",
		FlushInterval: 1,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close() //nolint:errcheck // test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	c.WriteDose(DosePoint{EntryID: "it", MedicationID: "aspirin", Source: "cli", InventoryAfter: 5, DosesToday: 1, DosesPerDay: 1})
	c.Flush()
}
