// Package app wires every component into one running bridge process:
// identity, config store, backend adapter, device cache, discovery
// responders, the v1/v2 HTTP surfaces, and the Entertainment server.
// It owns startup ordering and the shutdown sequence from §5.
package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridged/internal/apiv1"
	"github.com/dokzlo13/huebridged/internal/apiv2"
	"github.com/dokzlo13/huebridged/internal/backend"
	"github.com/dokzlo13/huebridged/internal/config"
	"github.com/dokzlo13/huebridged/internal/configstore"
	"github.com/dokzlo13/huebridged/internal/device"
	"github.com/dokzlo13/huebridged/internal/discovery"
	"github.com/dokzlo13/huebridged/internal/entertainment"
	"github.com/dokzlo13/huebridged/internal/identity"
	"github.com/dokzlo13/huebridged/internal/transport"
)

// App owns every long-lived component for one bridge process.
type App struct {
	cfg    *config.Config
	bridge identity.Bridge

	store     *configstore.Store
	adapter   backend.Adapter
	cache     *device.Cache
	ent       *entertainment.Manager
	transport *transport.Server
	ssdp      *discovery.SSDPResponder
	mdns      *discovery.MDNSAnnouncer
}

// New assembles an App from cfg. It opens the config store (creating the
// data directory and loading the document), but no network connection
// or goroutine starts until Start.
func New(cfg *config.Config) (*App, error) {
	bridge := identity.Resolve()

	store, err := configstore.Open(cfg.DataDir, cfg.Ambient.ConfigWriteDelay.Duration)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}

	adapter := backend.New(cfg.HassURL, cfg.HassToken, cfg.Ambient.BackendTimeout.Duration)
	cache := device.NewCache(store, adapter)
	ent := entertainment.NewManager(cache, adapter)

	transportSrv := transport.New(transport.Config{
		DataDir:   cfg.DataDir,
		BridgeID:  bridge.BridgeID,
		HTTPPort:  cfg.HTTPPort,
		HTTPSPort: cfg.HTTPSPort,
	})

	return &App{
		cfg:       cfg,
		bridge:    bridge,
		store:     store,
		adapter:   adapter,
		cache:     cache,
		ent:       ent,
		transport: transportSrv,
	}, nil
}

// Start connects the backend, performs the initial device sync, mounts
// every HTTP route, and brings the transport and discovery layers up.
// It returns once the bridge is fully reachable.
func (a *App) Start(ctx context.Context) error {
	log.Info().Str("bridge_id", a.bridge.BridgeID).Str("mac", a.bridge.MAC).Msg("starting bridge")

	if err := a.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("connect backend: %w", err)
	}
	if err := a.cache.Start(ctx); err != nil {
		return fmt.Errorf("start device cache: %w", err)
	}

	v1 := apiv1.New(a.store, a.cache, a.adapter, a.bridge, a.ent)
	v1.Mount(a.transport.Router)

	v2 := apiv2.New(a.store, a.cache, a.adapter, a.bridge, a.ent)
	v2.Mount(a.transport.Router)

	ip := outboundIP()
	a.transport.Router.Get("/description.xml", transport.DescriptionHandler(transport.DescriptionInfo{
		IP:           ip,
		Port:         a.cfg.DiscoveryPort(),
		FriendlyName: fmt.Sprintf("%s (%s)", a.store.BridgeName(), ip),
		Serial:       a.bridge.Serial,
		UID:          a.bridge.UID,
	}).ServeHTTP)

	if err := a.transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	a.ssdp = discovery.NewSSDPResponder(discovery.SSDPConfig{
		IP:        ip,
		Port:      a.cfg.DiscoveryPort(),
		BridgeID:  a.bridge.BridgeID,
		BridgeUID: a.bridge.UID,
	})
	if err := a.ssdp.Start(ctx); err != nil {
		return fmt.Errorf("start ssdp responder: %w", err)
	}

	a.mdns = discovery.NewMDNSAnnouncer(discovery.MDNSConfig{
		Port:     443,
		BridgeID: a.bridge.BridgeID,
		ModelID:  "BSB002",
	})
	if err := a.mdns.Start(); err != nil {
		return fmt.Errorf("start mdns announcer: %w", err)
	}

	log.Info().Int("http", a.cfg.HTTPPort).Int("https", a.cfg.HTTPSPort).Msg("bridge ready")
	return nil
}

// Stop runs the §5 shutdown sequence: discovery first (bounded to its
// ≤2s poll latency), then the Entertainment server, then the config
// store's immediate flush, then the backend connection, then the HTTP
// listeners last.
func (a *App) Stop(ctx context.Context) {
	if a.mdns != nil {
		a.mdns.Stop()
	}
	if a.ssdp != nil {
		a.ssdp.Stop()
	}
	a.ent.Stop(ctx)
	a.cache.Stop()
	if err := a.store.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("config store flush failed during shutdown")
	}
	if err := a.adapter.Close(); err != nil {
		log.Warn().Err(err).Msg("backend close failed during shutdown")
	}
	a.transport.Stop()
	log.Info().Msg("bridge stopped")
}

// SignalContext returns a context cancelled on SIGINT/SIGTERM, for the
// caller to block on between Start and Stop.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// outboundIP finds the local address that would be used to reach the
// public internet, without sending any traffic — the same trick used to
// pick the IP advertised in description.xml and SSDP/mDNS records when
// the host has no single obvious interface.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		log.Warn().Err(err).Msg("could not determine outbound IP, falling back to loopback")
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
