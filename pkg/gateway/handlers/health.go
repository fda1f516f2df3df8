package handlers

import (
	"net/http"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports whether the gateway's collaborators are wired.
type ReadyHandler struct {
	StoreKind string // "postgres" or "memory"
	HasLLM    bool
	HasAvatar bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK     bool     `json:"ok"`
		Store  string   `json:"store"`
		Issues []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	if !h.HasLLM {
		issues = append(issues, "chat provider not configured")
	}
	if !h.HasAvatar {
		issues = append(issues, "avatar upstream not configured")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, readyResp{OK: ok, Store: h.StoreKind, Issues: issues})
}
