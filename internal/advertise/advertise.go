// Package advertise announces the running sessions on the local network
// over mDNS, so clients can discover them without knowing the host.
package advertise

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/grandcat/zeroconf"
)

const (
	// Service is the DNS-SD service type.
	Service = "_joint._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// server is the part of *zeroconf.Server the advertiser uses.
type server interface {
	SetText(text []string)
	Shutdown()
}

// register is overridden in tests.
var register = func(instance, service, domain string, port int, text []string) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, nil)
}

// Advertiser publishes one service instance whose TXT records list the
// session paths.
type Advertiser struct {
	port     int
	instance string
	logger   *slog.Logger

	mu     sync.Mutex
	server server
	paths  []string
}

// New returns an Advertiser for the listener on port. Nothing is published
// until Start.
func New(port int, logger *slog.Logger) *Advertiser {
	if logger == nil {
		logger = slog.Default()
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return &Advertiser{
		port:     port,
		instance: fmt.Sprintf("joint-%s", host),
		logger:   logger.With("component", "advertise"),
	}
}

// Start registers the service. Calling Start twice is a no-op.
func (a *Advertiser) Start(paths []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}
	a.paths = normalize(paths)
	srv, err := register(a.instance, Service, Domain, a.port, text(a.paths))
	if err != nil {
		return fmt.Errorf("advertise: register %s: %w", Service, err)
	}
	a.server = srv
	a.logger.Info("mDNS service registered", "instance", a.instance, "service", Service, "port", a.port)
	return nil
}

// Update replaces the advertised paths. It does nothing before Start or
// when the set is unchanged.
func (a *Advertiser) Update(paths []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	paths = normalize(paths)
	if slices.Equal(paths, a.paths) {
		return
	}
	a.paths = paths
	a.server.SetText(text(paths))
	a.logger.Debug("mDNS records updated", "paths", paths)
}

// Paths returns the advertised paths.
func (a *Advertiser) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

// Close withdraws the service.
func (a *Advertiser) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mDNS service withdrawn", "instance", a.instance)
}

func normalize(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}

// text renders one TXT record per path. A record holds at most 255 bytes,
// so longer paths are skipped.
func text(paths []string) []string {
	out := []string{"txtvers=1"}
	for _, p := range paths {
		rec := "path=" + p
		if len(rec) > 255 {
			continue
		}
		out = append(out, rec)
	}
	return out
}
