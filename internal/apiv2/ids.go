// Package apiv2 implements the v2 "CLIP" resource-graph API (§4.8): a
// derived projection of the same light/group data model exposed by
// apiv1, addressed by deterministic UUIDv5 resource ids, plus an SSE
// event-stream scaffold.
package apiv2

import "github.com/google/uuid"

// Fixed per-resource-type namespaces. Each is itself a UUIDv5 of the
// DNS namespace and a resource-type label, so they're reproducible
// without being hardcoded magic strings.
var (
	nsBridge                = typeNamespace("bridge")
	nsBridgeHome            = typeNamespace("bridge_home")
	nsDevice                = typeNamespace("device")
	nsLight                 = typeNamespace("light")
	nsGroupedLight          = typeNamespace("grouped_light")
	nsRoom                  = typeNamespace("room")
	nsZigbeeConnectivity    = typeNamespace("zigbee_connectivity")
	nsEntertainment         = typeNamespace("entertainment")
	nsZigbeeDeviceDiscovery = typeNamespace("zigbee_device_discovery")
	nsGeolocation           = typeNamespace("geolocation")
	nsHomekit               = typeNamespace("homekit")
	nsMatter                = typeNamespace("matter")
)

func typeNamespace(label string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte("huebridged.resource."+label))
}

// resourceID derives a stable, deterministic-across-restarts id for one
// resource instance: UUIDv5(namespace_for_type, stable_key). Singleton
// resources key off the bridge id; per-thing resources key off their
// area id or entity id (§4.8).
func resourceID(ns uuid.UUID, stableKey string) string {
	return uuid.NewSHA1(ns, []byte(stableKey)).String()
}
