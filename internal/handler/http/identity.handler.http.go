// internal/handler/http/identity.handler.http.go
package httpServer

import "net/http"

// Injected by the hosting platform's gateway. Clients cannot set them through it,
// so their presence together is trusted.
const (
	headerWXSource = "X-WX-SOURCE"
	headerWXOpenID = "X-WX-OPENID"
)

// wxOpenID echoes the caller's openid when the request came through the platform gateway.
func wxOpenID(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerWXSource) == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(r.Header.Get(headerWXOpenID)))
}
