// Package discovery makes the bridge findable on the local network via
// SSDP (§4.5) and mDNS, mirroring the two parallel mechanisms real Hue
// bridges use.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ssdpMulticastAddr = "239.255.255.250:1900"
	ssdpPort          = 1900
	pollInterval      = 2 * time.Second
)

// SSDPConfig carries everything the responder needs to build its
// canned M-SEARCH replies.
type SSDPConfig struct {
	IP             string
	Port           int // the discovery-exposed HTTP port, §4.5
	BridgeID       string
	BridgeUID      string
}

// SSDPResponder answers M-SEARCH requests on UDP/1900 with the three
// advertisements §4.5 requires. It runs on a dedicated goroutine polled
// every 2 seconds via a read deadline, per §5's cooperative-stop model.
type SSDPResponder struct {
	cfg SSDPConfig

	conn   *net.UDPConn
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSSDPResponder builds a responder; it does not bind a socket until Start.
func NewSSDPResponder(cfg SSDPConfig) *SSDPResponder {
	return &SSDPResponder{cfg: cfg}
}

// Start joins the SSDP multicast group and begins the poll loop. It
// returns once the socket is bound; the loop itself runs in the
// background until Stop is called.
func (r *SSDPResponder) Start(ctx context.Context) error {
	groupAddr, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		return fmt.Errorf("resolve ssdp multicast addr: %w", err)
	}

	conn, err := net.ListenMulticastUDP("udp4", r.findInterface(), groupAddr)
	if err != nil {
		return fmt.Errorf("join ssdp multicast group: %w", err)
	}
	_ = conn.SetReadBuffer(8192)

	r.conn = conn

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.loop(loopCtx)

	log.Info().Str("addr", ssdpMulticastAddr).Msg("ssdp responder listening")
	return nil
}

// Stop cancels the poll loop and closes the socket. The loop notices
// the cancellation within one poll interval (§5: "≤ 2s latency").
func (r *SSDPResponder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.wg.Wait()
}

func (r *SSDPResponder) loop(ctx context.Context) {
	defer r.wg.Done()
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				log.Debug().Err(err).Msg("ssdp read error")
				continue
			}
		}

		req := string(buf[:n])
		if !strings.Contains(req, "M-SEARCH") {
			continue
		}
		r.respond(addr)
	}
}

// respond sends the three independent advertisements §4.5 requires,
// each a separate unicast datagram.
func (r *SSDPResponder) respond(addr *net.UDPAddr) {
	for _, adv := range r.advertisements() {
		sock, err := net.DialUDP("udp4", nil, addr)
		if err != nil {
			log.Debug().Err(err).Msg("ssdp reply dial failed")
			continue
		}
		if _, err := sock.Write([]byte(adv)); err != nil {
			log.Debug().Err(err).Msg("ssdp reply write failed")
		}
		_ = sock.Close()
	}
	log.Debug().Str("peer", addr.String()).Msg("served ssdp discovery info")
}

func (r *SSDPResponder) advertisements() []string {
	type adv struct{ st, usn string }
	advs := []adv{
		{"upnp:rootdevice", fmt.Sprintf("uuid:%s::upnp:rootdevice", r.cfg.BridgeUID)},
		{fmt.Sprintf("uuid:%s", r.cfg.BridgeUID), fmt.Sprintf("uuid:%s", r.cfg.BridgeUID)},
		{"urn:schemas-upnp-org:device:basic:1", fmt.Sprintf("uuid:%s::urn:schemas-upnp-org:device:basic:1", r.cfg.BridgeUID)},
	}
	out := make([]string, 0, len(advs))
	for _, a := range advs {
		out = append(out, r.template(a.st, a.usn))
	}
	return out
}

func (r *SSDPResponder) template(st, usn string) string {
	// The trailing blank line is required per the SSDP spec.
	lines := []string{
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age=100",
		"EXT:",
		fmt.Sprintf("LOCATION: http://%s:%d/description.xml", r.cfg.IP, r.cfg.Port),
		"SERVER: Hue/1.0 UPnP/1.0 IpBridge/1.48.0",
		fmt.Sprintf("hue-bridgeid: %s", r.cfg.BridgeID),
		fmt.Sprintf("ST: %s", st),
		fmt.Sprintf("USN: %s", usn),
		"",
		"",
	}
	return strings.Join(lines, "\r\n")
}

func (r *SSDPResponder) findInterface() *net.Interface {
	ip := net.ParseIP(r.cfg.IP)
	if ip == nil {
		return nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
				return &ifaces[i]
			}
		}
	}
	return nil
}
