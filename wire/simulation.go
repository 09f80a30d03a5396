package wire

import (
	"math/rand"
	"sync"
	"time"
)

// SimulationConfig controls the realism of the simulated link
// Default: 1.5% of frames lost in each direction
type SimulationConfig struct {
	// MTU (Maximum Transmission Unit) - ATT MTU limits
	MinMTU     int // Default: 23 bytes (BLE 4.0 minimum)
	MaxMTU     int // Default: 247 bytes (one LL PDU)
	DefaultMTU int // Default: 185 bytes (what a typical phone asks for)

	// Packet loss, applied to each frame in each direction
	PacketLossRate float64 // Default: 0.015 (1.5% packet loss)

	// Deterministic mode for testing
	Deterministic bool  // Default: false (use for reproducible scenarios)
	Seed          int64 // Random seed when Deterministic=true
}

// DefaultSimulationConfig returns realistic link parameters
func DefaultSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		MinMTU:     DefaultMTU,
		MaxMTU:     MaxMTU,
		DefaultMTU: 185,

		PacketLossRate: 0.015, // 1.5% packet loss

		Deterministic: false,
		Seed:          0,
	}
}

// PerfectSimulationConfig returns 100% reliable config for testing
func PerfectSimulationConfig() *SimulationConfig {
	cfg := DefaultSimulationConfig()
	cfg.PacketLossRate = 0
	cfg.Deterministic = true
	return cfg
}

// Simulator rolls the dice for the simulated link
type Simulator struct {
	config *SimulationConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a new BLE simulator
func NewSimulator(config *SimulationConfig) *Simulator {
	if config == nil {
		config = DefaultSimulationConfig()
	}

	var rng *rand.Rand
	if config.Deterministic {
		rng = rand.New(rand.NewSource(config.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Simulator{
		config: config,
		rng:    rng,
	}
}

// Config returns the simulator's configuration
func (s *Simulator) Config() *SimulationConfig {
	return s.config
}

// ShouldPacketSucceed returns true if packet transmission should succeed
func (s *Simulator) ShouldPacketSucceed() bool {
	if s.config.PacketLossRate <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() >= s.config.PacketLossRate
}

// NegotiatedMTU returns the MTU after negotiation
// Both devices propose their max MTU, the minimum is selected
func (s *Simulator) NegotiatedMTU(device1MTU, device2MTU int) int {
	mtu := device1MTU
	if device2MTU < mtu {
		mtu = device2MTU
	}

	// Clamp to valid range
	if mtu < s.config.MinMTU {
		mtu = s.config.MinMTU
	} else if mtu > s.config.MaxMTU {
		mtu = s.config.MaxMTU
	}

	return mtu
}
