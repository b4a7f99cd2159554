// internal/handler/http/home.handler.http.go
package httpServer

import (
	_ "embed"
	"net/http"
)

//go:embed static/index.html
var indexHTML []byte

func home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}
