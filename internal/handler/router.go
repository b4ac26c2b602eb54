package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux wires all HTTP routes. Authentication and rate limiting wrap
// the returned mux in cmd/server.
func NewMux(auth *AuthHandler, profile *ProfileHandler, health *HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Health)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/auth/register", auth.Register)
	mux.HandleFunc("POST /api/auth/login", auth.Login)
	mux.HandleFunc("POST /api/auth/change-password", auth.ChangePassword)
	mux.HandleFunc("DELETE /api/account", auth.DeleteAccount)

	mux.HandleFunc("GET /api/profile", profile.View)
	mux.HandleFunc("PUT /api/profile", profile.Edit)
	mux.HandleFunc("POST /api/profile/avatar", profile.UploadAvatar)

	return mux
}
