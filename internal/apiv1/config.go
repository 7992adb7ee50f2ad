package apiv1

import (
	"net/http"
	"sort"

	"github.com/dokzlo13/huebridged/internal/configstore"
)

// handleConfig serves GET/PUT /api/{u}/config (§4.7): the authenticated
// full config, or an update of bridge-wide settings.
func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, a.fullConfig())
	case http.MethodPut:
		a.updateConfig(w, r, user)
	default:
		a.handleMethodNotAllowed(w, r)
	}
}

func (a *API) fullConfig() map[string]any {
	base := a.basicConfig()
	cfg := a.store.BridgeConfig()
	base["zigbeechannel"] = cfg.ZigbeeChannel
	base["timezone"] = cfg.Timezone
	base["linkbutton"] = a.store.LinkModeEnabled()
	base["portalservices"] = false
	base["portalconnection"] = "disconnected"
	base["internetservices"] = map[string]any{
		"internet": "disconnected", "remoteaccess": "disconnected", "time": "disconnected", "swupdate": "disconnected",
	}
	base["whitelist"] = a.whitelistView()
	base["ipaddress"] = ""
	base["netmask"] = "255.255.255.0"
	base["gateway"] = ""
	base["dhcp"] = true
	base["proxyaddress"] = "none"
	base["proxyport"] = 0
	base["UTC"] = ""
	base["localtime"] = ""
	return base
}

func (a *API) whitelistView() map[string]any {
	out := map[string]any{}
	for username, u := range a.store.Users() {
		out[username] = map[string]any{
			"name":         u.Name,
			"create date":  u.CreateDate,
			"last use date": u.LastUseDate,
		}
	}
	return out
}

// updateConfig implements PUT /api/{u}/config: `name` updates the
// bridge name; `linkbutton` is dropped (link mode is never set or
// persisted through this endpoint, §3); every other key is acknowledged
// without being stored.
func (a *API) updateConfig(w http.ResponseWriter, r *http.Request, user configstore.User) {
	var fields map[string]any
	if !decodeBody(w, r, &fields) {
		return
	}

	for key, value := range fields {
		switch key {
		case "linkbutton":
			// Dropped: link mode opens only through the discovery-token flow.
		case "name":
			if name, ok := value.(string); ok {
				a.store.SetBridgeName(name)
			}
		default:
			// Other bridge_config keys (timezone, zigbeechannel, ...)
			// are accepted and acknowledged but not currently backed
			// by dedicated Store setters.
		}
	}

	order := make([]string, 0, len(fields))
	for k := range fields {
		order = append(order, k)
	}
	sort.Strings(order)
	writeJSON(w, hueSuccessFields(stripUserPrefix(r.URL.Path, user.Username), fields, order))
}
