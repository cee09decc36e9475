package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()

	router.Use(s.requestIDMiddleware)
	router.Use(s.loggingMiddleware)
	router.Use(s.metricsMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/check-login", s.handleCheckLogin).Methods(http.MethodGet)
	router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Everything below needs a session that resolves to a stored credential.
	gated := router.NewRoute().Subrouter()
	gated.Use(s.gateMiddleware)

	gated.HandleFunc("/emails", s.handleEmails).Methods(http.MethodPost)
	gated.HandleFunc("/calendar", s.handleCalendar).Methods(http.MethodPost)
	gated.HandleFunc("/add-calendar", s.handleAddCalendar).Methods(http.MethodPost)
	gated.HandleFunc("/delete-calendar", s.handleDeleteCalendar).Methods(http.MethodPost)
	gated.HandleFunc("/update-calendar-id", s.handleUpdateCalendarID).Methods(http.MethodPost)

	return router
}
