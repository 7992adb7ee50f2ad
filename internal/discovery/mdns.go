package discovery

import (
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const mdnsServiceType = "_hue._tcp"

// MDNSConfig carries the bridge facts advertised in the TXT record.
type MDNSConfig struct {
	Port     int
	BridgeID string
	ModelID  string
}

// MDNSAnnouncer registers the bridge on multicast DNS as
// "Philips Hue - <last 6 of bridge id>._hue._tcp.local.", the same
// naming real bridges use so existing Hue apps find it.
type MDNSAnnouncer struct {
	cfg    MDNSConfig
	server *zeroconf.Server
}

// NewMDNSAnnouncer builds an announcer; registration happens in Start.
func NewMDNSAnnouncer(cfg MDNSConfig) *MDNSAnnouncer {
	return &MDNSAnnouncer{cfg: cfg}
}

// Start registers the mDNS service record on every usable interface.
func (m *MDNSAnnouncer) Start() error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("list interfaces for mdns: %w", err)
	}
	var usable []net.Interface
	for _, ifa := range ifaces {
		if ifa.Flags&net.FlagUp == 0 || ifa.Flags&net.FlagLoopback != 0 {
			continue
		}
		usable = append(usable, ifa)
	}

	suffix := m.cfg.BridgeID
	if len(suffix) >= 6 {
		suffix = suffix[len(suffix)-6:]
	}
	instance := fmt.Sprintf("Philips Hue - %s", strings.ToUpper(suffix))

	text := []string{
		fmt.Sprintf("bridgeid=%s", m.cfg.BridgeID),
		fmt.Sprintf("modelid=%s", m.cfg.ModelID),
	}

	server, err := zeroconf.Register(instance, mdnsServiceType, "local.", m.cfg.Port, text, usable)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}
	m.server = server

	log.Info().Str("instance", instance).Int("port", m.cfg.Port).Msg("mdns service registered")
	return nil
}

// Stop withdraws the mDNS registration.
func (m *MDNSAnnouncer) Stop() {
	if m.server != nil {
		m.server.Shutdown()
	}
}
