package admission

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines rate limiting and concurrency bounds. With an empty
// Name it is the gate-wide config; with a Name it applies to one
// workflow definition.
type Config struct {
	// Name is the workflow definition id this config applies to.
	// Empty for the gate-wide config.
	Name string

	// MaxConcurrent limits how many executions may run simultaneously.
	// Zero means no limit at this level.
	MaxConcurrent int

	// RateLimit is the maximum sustained submissions per second.
	// Zero disables rate limiting at this level.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// state tracks runtime counters for one admission level.
type state struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

func newState(cfg Config) *state {
	s := &state{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Gate controls gate-wide and per-workflow admission.
// It is safe for concurrent use.
type Gate struct {
	mu     sync.Mutex
	global *state
	flows  map[string]*state
}

// NewGate creates a Gate. The first config is the gate-wide level; the
// rest configure individual workflows by Name. Workflows not listed
// are bounded only by the gate-wide level.
func NewGate(global Config, flows ...Config) *Gate {
	g := &Gate{
		global: newState(global),
		flows:  make(map[string]*state, len(flows)),
	}
	for _, cfg := range flows {
		if cfg.Name == "" {
			continue
		}
		g.flows[cfg.Name] = newState(cfg)
	}
	return g
}

// Acquire checks rate limits and concurrency for the given workflow.
// If the submission is allowed it increments the active counters and
// returns true. The caller MUST call Release when the execution
// reaches a terminal status.
func (g *Gate) Acquire(workflowID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Check gate-wide constraints.
	if g.global.limiter != nil && !g.global.limiter.Allow() {
		return false
	}
	if g.global.config.MaxConcurrent > 0 && g.global.active >= g.global.config.MaxConcurrent {
		return false
	}

	// Check workflow-level constraints.
	fs := g.flows[workflowID]
	if fs != nil {
		if fs.limiter != nil && !fs.limiter.Allow() {
			return false
		}
		if fs.config.MaxConcurrent > 0 && fs.active >= fs.config.MaxConcurrent {
			return false
		}
		fs.active++
	}

	g.global.active++
	return true
}

// Release decrements the active counters for the workflow.
func (g *Gate) Release(workflowID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.global.active > 0 {
		g.global.active--
	}
	if fs := g.flows[workflowID]; fs != nil && fs.active > 0 {
		fs.active--
	}
}

// SetWorkflowConfig dynamically updates (or creates) a per-workflow
// configuration.
func (g *Gate) SetWorkflowConfig(cfg Config) {
	if cfg.Name == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	existing := g.flows[cfg.Name]
	fs := newState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		fs.active = existing.active
	}
	g.flows[cfg.Name] = fs
}

// Active returns the total number of executions currently admitted.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.global.active
}

// ActiveCount returns the number of admitted executions for one
// workflow. Workflows without their own config always report zero.
func (g *Gate) ActiveCount(workflowID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fs := g.flows[workflowID]; fs != nil {
		return fs.active
	}
	return 0
}
