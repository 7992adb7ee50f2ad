package apiv1

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	DeviceType        string `json:"devicetype"`
	GenerateClientKey bool   `json:"generateclientkey"`
}

// handleCreateUser implements POST /api (§4.7): mints an application
// key while link mode is enabled, rejecting Home-Assistant-branded
// device types outright.
func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.handleMethodNotAllowed(w, r)
		return
	}

	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DeviceType == "" {
		writeError(w, ErrParameterNotAvailable, r.URL.Path, "devicetype not specified")
		return
	}
	if strings.HasPrefix(req.DeviceType, "home-assistant") {
		writeError(w, ErrHomeAssistantReject, r.URL.Path, "pairing with this client is explicitly disabled")
		return
	}

	if !a.store.LinkModeEnabled() {
		a.store.EnableLinkModeDiscovery()
		writeError(w, ErrLinkButtonNotPressed, r.URL.Path, "link button not pressed")
		return
	}

	user, err := a.store.CreateUser(req.DeviceType)
	if err != nil {
		writeError(w, ErrLinkButtonNotPressed, r.URL.Path, "link button not pressed")
		return
	}

	values := map[string]any{"username": user.Username}
	if req.GenerateClientKey {
		values["clientkey"] = user.ClientKey
	}
	a.store.DisableLinkMode()
	a.store.DisableLinkModeDiscovery()
	writeJSON(w, []successEnvelope{{Success: values}})
}

// handleLinkToken implements GET /link/{token} (§4.7): matching the
// current discovery key flips link mode on and returns a small
// confirmation page, mirroring a physical button press.
func (a *API) handleLinkToken(w http.ResponseWriter, r *http.Request) {
	token := tokenParam(r)
	ok := a.store.TryLinkModeDiscoveryKey(token)
	w.Header().Set("Content-Type", "text/html")
	if ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Link mode enabled</h1></body></html>"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("<html><body><h1>Invalid or expired link</h1></body></html>"))
}

// handleConfigUnauthenticated implements GET /api/config: a basic
// config projection reachable with no credentials. Hitting it opens a
// link-mode-discovery window so a pairing app can proceed (§4.7).
func (a *API) handleConfigUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.handleMethodNotAllowed(w, r)
		return
	}
	a.store.EnableLinkModeDiscovery()
	writeJSON(w, a.basicConfig())
}

func (a *API) basicConfig() map[string]any {
	cfg := a.store.BridgeConfig()
	return map[string]any{
		"name":             cfg.Name,
		"datastoreversion": "163",
		"swversion":        "1960130070",
		"apiversion":       "1.60.0",
		"mac":              a.bridge.MAC,
		"bridgeid":         a.bridge.BridgeID,
		"factorynew":       false,
		"replacesbridgeid": nil,
		"modelid":          "BSB002",
		"starterkitid":     "",
	}
}

func tokenParam(r *http.Request) string {
	return chi.URLParam(r, "token")
}
