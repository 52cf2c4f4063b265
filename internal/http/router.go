package httpapi

import (
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/add-product", app.addProductHandler)
	mux.HandleFunc("/upload-excel", app.uploadHandler)
	mux.HandleFunc("/fetch", app.fetchHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	return WithRequestID(WithLogging(WithCORS(mux)))
}
