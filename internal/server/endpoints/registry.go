package endpoints

import (
	"github.com/jackzampolin/docwatch/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health
		&HealthEndpoint{},

		// Reconciliation snapshot
		&ProgressEndpoint{},
		&ResetEndpoint{},

		// Persisted job group
		&GroupEndpoint{},

		// Prometheus
		&MetricsEndpoint{},
	}
}
