package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolyon/ecolyon/internal/provider/resilience"
)

func registered(registry *resilience.Registry, names ...string) {
	for _, name := range names {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		resilience.NewClient(cfg)
	}
}

func TestRegistry_NewClientRegisters(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(registry, "grandlyon-wfs")

	require.Equal(t, 1, registry.ProviderCount())

	health := registry.GetHealth("grandlyon-wfs")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	registry.Unregister("grandlyon-wfs")
	assert.Zero(t, registry.ProviderCount())
	assert.Nil(t, registry.GetHealth("grandlyon-wfs"))
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(registry, "atmo-aura")

	registry.RecordSuccess("atmo-aura")
	registry.RecordFailure("atmo-aura", errors.New("server error: Service Unavailable"))

	health := registry.GetHealth("atmo-aura")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.WithinDuration(t, time.Now(), *health.LastFailureAt, time.Second)
	assert.Equal(t, "server error: Service Unavailable", health.LastError)

	// Unknown providers are ignored.
	registry.RecordSuccess("unregistered")
	registry.RecordFailure("unregistered", assert.AnError)
	assert.Nil(t, registry.GetHealth("unregistered"))
}

func TestRegistry_ListingIsSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	assert.Empty(t, registry.GetProviderNames())

	registered(registry, "grandlyon-wfs", "atmo-aura")

	assert.Equal(t, []string{"atmo-aura", "grandlyon-wfs"}, registry.GetProviderNames())

	all := registry.GetAllHealth()
	require.Len(t, all, 2)
	assert.Equal(t, "atmo-aura", all[0].Name)
	assert.Equal(t, "grandlyon-wfs", all[1].Name)
}

func TestProviderHealth_States(t *testing.T) {
	tests := []struct {
		state     gobreaker.State
		healthy   bool
		degraded  bool
		unhealthy bool
	}{
		{gobreaker.StateClosed, true, false, false},
		{gobreaker.StateHalfOpen, false, true, false},
		{gobreaker.StateOpen, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.healthy, h.IsHealthy())
			assert.Equal(t, tt.degraded, h.IsDegraded())
			assert.Equal(t, tt.unhealthy, h.IsUnhealthy())
		})
	}
}
