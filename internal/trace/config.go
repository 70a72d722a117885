package trace

import (
	"time"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/atrtrace/atr/internal/probe"
)

// Strategy selects how TTLs are scheduled.
type Strategy int

const (
	// StrategySequential keeps one probe in flight, in ascending TTL order
	StrategySequential Strategy = iota
	// StrategyConcurrent dispatches every TTL at once
	StrategyConcurrent
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyConcurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// TimeoutPolicy decides what a concurrent sweep does with timed out probes.
type TimeoutPolicy int

const (
	// TimeoutReport emits timed out probes as Failed hops
	TimeoutReport TimeoutPolicy = iota
	// TimeoutDrop discards timed out probes
	TimeoutDrop
)

// SetupPolicy decides what happens when a probe socket cannot be set up.
type SetupPolicy int

const (
	// SetupAbort stops the sweep and returns the *probe.SetupError
	SetupAbort SetupPolicy = iota
	// SetupSkip emits the hop as Failed and moves on
	SetupSkip
)

// Config holds the configuration for a trace operation.
type Config struct {
	// Probe settings
	ProbeMethod probe.Method  // Probe protocol (default: ICMP)
	MaxHops     int           // TTL ceiling (default: 64)
	FirstHop    int           // Starting TTL (default: 1)
	Timeout     time.Duration // Per-probe timeout (default: DefaultTimeout(ProbeMethod))
	Port        int           // Destination port when the target names none (0 selects 80)

	// Mode settings
	Strategy      Strategy
	TimeoutPolicy TimeoutPolicy // Concurrent strategy only

	// Setup failure handling
	SetupPolicy  SetupPolicy
	SetupRetries int           // Extra Send attempts on setup errors
	RetryDelay   time.Duration // Initial backoff between attempts (default: 50ms)

	// Resolver turns the target into addresses (default: NetResolver)
	Resolver Resolver

	// OTelTracer records one span per probed hop (default: global provider)
	OTelTracer oteltrace.Tracer

	// OnResolved is called once the target is resolved, before any probe
	OnResolved func(target Target)

	// OnHop is called for every emitted hop, in emission order
	OnHop func(hop HopResult)
}

// DefaultTimeout returns the per-probe timeout for a protocol.
func DefaultTimeout(m probe.Method) time.Duration {
	if m == probe.MethodTCP {
		return time.Second
	}
	return 300 * time.Millisecond
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeMethod: probe.MethodICMP,
		MaxHops:     64,
		FirstHop:    1,
		Port:        80,
		RetryDelay:  50 * time.Millisecond,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxHops < 1 || c.MaxHops > 255 {
		return ErrInvalidMaxHops
	}
	if c.FirstHop < 1 || c.FirstHop > c.MaxHops {
		return ErrInvalidFirstHop
	}
	if c.Timeout != 0 && c.Timeout < 10*time.Millisecond {
		return ErrInvalidTimeout
	}
	if c.SetupRetries < 0 {
		return ErrInvalidSetupRetries
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// withDefaults fills the zero-valued optional fields.
func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout(c.ProbeMethod)
	}
	if c.Port == 0 {
		c.Port = 80
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 50 * time.Millisecond
	}
	if c.Resolver == nil {
		c.Resolver = NetResolver{}
	}
	if c.OTelTracer == nil {
		c.OTelTracer = otel.Tracer("github.com/atrtrace/atr/internal/trace")
	}
	return c
}
