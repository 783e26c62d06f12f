package handler

import (
	"embed"
	"net/http"
)

//go:embed pages/*.html
var pageFiles embed.FS

// PagesHandler serves the static checkout pages the redirect URLs point at.
type PagesHandler struct {
	files embed.FS
}

func NewPagesHandler() *PagesHandler {
	return &PagesHandler{files: pageFiles}
}

func (h *PagesHandler) Checkout(w http.ResponseWriter, _ *http.Request) {
	h.serve(w, "pages/checkout.html")
}

func (h *PagesHandler) Complete(w http.ResponseWriter, _ *http.Request) {
	h.serve(w, "pages/complete.html")
}

func (h *PagesHandler) serve(w http.ResponseWriter, name string) {
	content, err := h.files.ReadFile(name)
	if err != nil {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
