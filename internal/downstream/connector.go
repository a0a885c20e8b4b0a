package downstream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultAttempts bounds the startup resolution loop per run.
	DefaultAttempts = 20
	// DefaultBackoff is the fixed wait between attempts.
	DefaultBackoff = time.Second
)

// Connector resolves the public URL of every required downstream service
// before the server starts routing traffic. Resolution runs once during
// startup with a bounded retry budget; exhausting the budget for any
// required service is fatal. Resolved URLs are written before any
// request-serving goroutine exists and are read-only afterwards.
type Connector struct {
	clients  []*Client
	attempts int
	backoff  time.Duration
	trusted  []string
	log      zerolog.Logger

	mu   sync.RWMutex
	urls map[string]string
}

// NewConnector builds a Connector over the required clients. attempts
// and backoff fall back to the defaults when non-positive. trusted is
// the domain allowlist for self-reported public URLs; empty disables
// the check.
func NewConnector(clients []*Client, attempts int, backoff time.Duration, trusted []string, log zerolog.Logger) *Connector {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Connector{
		clients:  clients,
		attempts: attempts,
		backoff:  backoff,
		trusted:  trusted,
		log:      log,
		urls:     make(map[string]string),
	}
}

// Resolve probes every unresolved service once per attempt, waiting the
// backoff interval between attempts, until all services answer or the
// retry budget runs out.
func (c *Connector) Resolve(ctx context.Context) error {
	for attempt := c.attempts; attempt > 0; attempt-- {
		pending, err := c.probePending(ctx, attempt)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
	return c.unreachable()
}

// URL returns the resolved public URL of the named service, or "" when
// the service never resolved.
func (c *Connector) URL(service string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.urls[service]
}

// URLs returns a copy of every resolved service URL.
func (c *Connector) URLs() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.urls))
	for k, v := range c.urls {
		out[k] = v
	}
	return out
}

func (c *Connector) probePending(ctx context.Context, attempt int) ([]*Client, error) {
	var pending []*Client
	for _, client := range c.clients {
		if c.URL(client.Service()) != "" {
			continue
		}
		resolved, err := client.PublicURL(ctx)
		if err != nil {
			c.log.Warn().
				Int("attempts_left", attempt).
				Str("service", client.Service()).
				Msg("service not responding")
			pending = append(pending, client)
			continue
		}
		// A URL outside the allowlist is a configuration problem on one
		// side or the other; retrying cannot fix it.
		if !c.permitted(resolved) {
			return nil, fmt.Errorf("service %s reports public URL %q outside the trusted domains", client.Service(), resolved)
		}
		c.mu.Lock()
		c.urls[client.Service()] = resolved
		c.mu.Unlock()
		c.log.Info().Str("service", client.Service()).Str("url", resolved).Msg("service resolved")
	}
	return pending, nil
}

// permitted checks the URL's host against the trusted domain suffixes.
func (c *Connector) permitted(rawURL string) bool {
	if len(c.trusted) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, domain := range c.trusted {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func (c *Connector) unreachable() error {
	var names []string
	for _, client := range c.clients {
		if c.URL(client.Service()) == "" {
			names = append(names, client.Service())
		}
	}
	return fmt.Errorf("could not reach required service(s): %s", strings.Join(names, ", "))
}
