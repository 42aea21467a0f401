package breaker

import "sync"

// Group manages one breaker per dependency key. Breakers are created
// lazily on first use with the group default config, or with a per-key
// override when one was registered. A Group is safe for concurrent use.
type Group struct {
	mu        sync.Mutex
	def       Config
	overrides map[string]Config
	breakers  map[string]*Breaker
	onChange  func(key string, from, to State)
}

// NewGroup creates a breaker group with the given default config.
func NewGroup(def Config) *Group {
	return &Group{
		def:       def.withDefaults(),
		overrides: make(map[string]Config),
		breakers:  make(map[string]*Breaker),
	}
}

// Breaker returns the breaker for key, creating it on first use.
func (g *Group) Breaker(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[key]; ok {
		return b
	}

	cfg := g.def
	if override, ok := g.overrides[key]; ok {
		cfg = override
	}

	b := New(cfg)
	b.OnStateChange(func(from, to State) {
		g.mu.Lock()
		fn := g.onChange
		g.mu.Unlock()
		if fn != nil {
			fn(key, from, to)
		}
	})
	g.breakers[key] = b
	return b
}

// SetConfig registers a per-key config override. An existing breaker
// for the key picks up the new thresholds immediately; its state is
// preserved.
func (g *Group) SetConfig(key string, cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.overrides[key] = cfg.withDefaults()
	if b, ok := g.breakers[key]; ok {
		b.SetConfig(cfg)
	}
}

// OnStateChange registers a callback fired after any breaker in the
// group changes state. The callback runs outside the breaker lock.
func (g *Group) OnStateChange(fn func(key string, from, to State)) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

// States returns a snapshot of every breaker's current state.
func (g *Group) States() map[string]State {
	g.mu.Lock()
	bs := make(map[string]*Breaker, len(g.breakers))
	for k, b := range g.breakers {
		bs[k] = b
	}
	g.mu.Unlock()

	out := make(map[string]State, len(bs))
	for k, b := range bs {
		out[k] = b.State()
	}
	return out
}
