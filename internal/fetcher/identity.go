package fetcher

import (
	"math/rand"
	"sync"
)

// Identity is one browser disguise applied to outgoing requests.
type Identity struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-PH,en;q=0.9,fil;q=0.8",
	"en-GB,en;q=0.9,en-US;q=0.8",
}

// IdentityPool hands out identities and rotates to a fresh one when the
// current identity draws a bot challenge.
type IdentityPool struct {
	mu      sync.Mutex
	rng     *rand.Rand
	current Identity
}

func NewIdentityPool(seed int64) *IdentityPool {
	p := &IdentityPool{rng: rand.New(rand.NewSource(seed))}
	p.current = p.pick()
	return p
}

func (p *IdentityPool) pick() Identity {
	return Identity{
		UserAgent:      userAgents[p.rng.Intn(len(userAgents))],
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage: acceptLanguages[p.rng.Intn(len(acceptLanguages))],
	}
}

// Current returns the identity in use.
func (p *IdentityPool) Current() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Rotate swaps to a different identity and returns it. With a single-entry
// pool the same identity comes back.
func (p *IdentityPool) Rotate() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.current
	for i := 0; i < 8; i++ {
		next := p.pick()
		if next.UserAgent != prev.UserAgent {
			p.current = next
			break
		}
	}
	return p.current
}
