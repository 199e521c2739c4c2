package proxy

import (
	_ "embed"
	"log/slog"
	"net/http"
)

//go:embed models.json
var modelsJSON []byte

// modelsHandler returns a static model list so clients with a model picker
// have something to show. The entries are identities the proxy echoes back,
// not backend models: every request is forwarded to the one operator-
// configured backend model regardless of the id chosen here.
func modelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(modelsJSON); err != nil {
			slog.ErrorContext(r.Context(), "failed to write response", "error", err)
		}
	}
}
