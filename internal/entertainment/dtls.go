package entertainment

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/dtls/v2"
	"github.com/rs/zerolog/log"
)

// listenAddr is the fixed Entertainment UDP port (§4.9, §6).
const listenAddr = ":2100"

// dtlsListener wraps the pion DTLS-PSK listener bound to the
// Entertainment port, accepting exactly one connection at a time since
// only one group may stream at once (§4.9: "singleton").
type dtlsListener struct {
	ln net.Listener
}

func listenDTLSPSK(identity, secret string) (*dtlsListener, error) {
	cfg := &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return []byte(secret), nil
		},
		PSKIdentityHint: []byte(identity),
		CipherSuites:    []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
	}
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve entertainment addr: %w", err)
	}
	ln, err := dtls.Listen("udp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("listen dtls-psk: %w", err)
	}
	return &dtlsListener{ln: ln}, nil
}

func (d *dtlsListener) accept(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := d.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}

func (d *dtlsListener) Close() error {
	if d.ln == nil {
		return nil
	}
	return d.ln.Close()
}

// readLoop drains one Entertainment connection, decoding frames as
// they arrive. Each Read() returns one or more complete datagrams'
// worth of decrypted bytes (see splitFrames), so no cross-read
// buffering is needed.
func readLoop(ctx context.Context, conn net.Conn, onFrame func([]byte)) {
	chunk := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := conn.Read(chunk)
		if err != nil {
			if ctx.Err() == nil {
				log.Debug().Err(err).Msg("entertainment stream read ended")
			}
			return
		}
		for _, f := range splitFrames(chunk[:n]) {
			onFrame(f)
		}
	}
}
