package transport

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"
	"text/template"
)

//go:embed assets/description.xml.tmpl
var descriptionTemplateSource string

var descriptionTemplate = template.Must(template.New("description.xml").Parse(descriptionTemplateSource))

// DescriptionInfo is the set of bridge facts interpolated into
// description.xml (§1, §4.6): ip and port identify where the bridge's
// own API is reachable, the rest are fixed identity fields.
type DescriptionInfo struct {
	IP           string
	Port         int
	FriendlyName string
	Serial       string
	UID          string
}

// DescriptionHandler serves description.xml with the given info, fixed
// at construction time, since the fields don't change over a bridge's
// lifetime.
func DescriptionHandler(info DescriptionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := descriptionTemplate.Execute(&buf, info); err != nil {
			http.Error(w, fmt.Sprintf("render description: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write(buf.Bytes())
	}
}
