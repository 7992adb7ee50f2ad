// Package identity derives the bridge's self-identity (MAC, bridge id,
// serial, uid) and the ZigBee-style unique ids handed out to lights.
package identity

import (
	"crypto/md5"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
)

// fallbackMAC is used when no usable network interface can be found.
// Matches the documented degradation in the data model: a fixed MAC,
// not an error.
const fallbackMAC = "b6:82:d3:45:ac:29"

// Bridge is the immutable identity of this bridge instance, derived once
// at startup from the host MAC address.
type Bridge struct {
	MAC      string // colon-separated hex, lowercase
	BridgeID string // 16 hex chars, uppercase
	Serial   string // 12 hex chars, lowercase, no colons
	UID      string // "2f402f80-da50-11e1-9b23-" + serial
}

// Resolve builds a Bridge identity from the first usable hardware
// address found on the host, falling back to a fixed MAC if none exists.
func Resolve() Bridge {
	mac, err := firstHardwareAddr()
	if err != nil {
		log.Debug().Err(err).Str("fallback_mac", fallbackMAC).Msg("no usable network interface, using fallback MAC")
		mac = fallbackMAC
	}
	return FromMAC(mac)
}

// FromMAC builds a Bridge identity from a specific colon-hex MAC address.
// Exposed directly for testing the derivation formulas in isolation.
func FromMAC(mac string) Bridge {
	clean := strings.ToLower(strings.ReplaceAll(mac, ":", ""))
	serial := clean
	bridgeID := strings.ToUpper(clean[0:6] + "FFFE" + clean[6:12])
	return Bridge{
		MAC:      strings.ToLower(mac),
		BridgeID: bridgeID,
		Serial:   serial,
		UID:      "2f402f80-da50-11e1-9b23-" + serial,
	}
}

func firstHardwareAddr() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		return iface.HardwareAddr.String(), nil
	}
	return "", fmt.Errorf("no interface with a hardware address found")
}

// UniqueID derives the synthetic ZigBee-style address for an entity,
// formatted "00:XX:XX:XX:XX:XX:XX:XX-XX". Depends only on entityID and
// is byte-equal across calls.
func UniqueID(entityID string) string {
	sum := md5.Sum([]byte(entityID))
	return fmt.Sprintf(
		"00:%02x:%02x:%02x:%02x:%02x:%02x:%02x-%02x",
		sum[0], sum[1], sum[2], sum[3], sum[4], sum[5], sum[6], sum[7],
	)
}
