// Package device derives a human-readable device description from the
// User-Agent header. The description is shown in session lists and audit
// events ("Chrome on Linux", "Safari on iPhone").
package device

import (
	"net/http"

	"github.com/mssola/useragent"

	"wellgate/pkg/requestcontext"
)

// Middleware parses the User-Agent and stores a display name in the context.
// Unparseable or missing agents yield "Unknown device" rather than an error.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := DisplayName(r.Header.Get("User-Agent"))
		ctx := requestcontext.WithDeviceName(r.Context(), name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DisplayName renders a user agent string as "Browser on Platform".
func DisplayName(rawUA string) string {
	if rawUA == "" {
		return "Unknown device"
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	platform := ua.Platform()
	if ua.Mobile() && ua.Model() != "" {
		platform = ua.Model()
	}
	switch {
	case browser != "" && platform != "":
		return browser + " on " + platform
	case browser != "":
		return browser
	case platform != "":
		return platform
	default:
		return "Unknown device"
	}
}
