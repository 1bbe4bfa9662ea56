package transcribe

import (
	"fmt"
	"sync"
)

// registry holds all registered providers, keyed by name.
type registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // selection precedence
}

var global = &registry{providers: make(map[string]Provider)}

// Register adds a provider. Called from provider init() functions; later
// registrations with the same name replace earlier ones.
func Register(p Provider) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if _, exists := global.providers[p.Name()]; !exists {
		global.order = append(global.order, p.Name())
	}
	global.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func Get(name string) (Provider, error) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	p, ok := global.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown transcription provider %q", name)
	}
	return p, nil
}

// precedence fixes the credential fall-through order independently of
// init() ordering. First available wins; openai is the deterministic
// default when no credential is set.
var precedence = []string{"openai", "gemini"}

// Select resolves the provider for a request: an explicit name wins;
// otherwise the first provider in precedence order with a configured
// credential; otherwise the default provider, which fails fast at call
// time with a clear message.
func Select(name string) (Provider, error) {
	if name != "" {
		return Get(name)
	}

	global.mu.RLock()
	defer global.mu.RUnlock()
	if len(global.order) == 0 {
		return nil, fmt.Errorf("no transcription providers registered")
	}
	for _, n := range precedence {
		if p, ok := global.providers[n]; ok && p.Available() {
			return p, nil
		}
	}
	for _, n := range precedence {
		if p, ok := global.providers[n]; ok {
			return p, nil
		}
	}
	return global.providers[global.order[0]], nil
}
