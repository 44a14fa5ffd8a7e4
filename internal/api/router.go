package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vigil-mon/agent/internal/engine"
)

func NewRouter(eng Engine) *mux.Router {
	r := mux.NewRouter()
	h := newHandler(eng)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.getState).Methods(http.MethodGet)
	api.HandleFunc("/processes", h.getProcesses).Methods(http.MethodGet)
	api.HandleFunc("/processes/{pid:[0-9]+}/terminate", h.command(engine.VerbTerminate)).Methods(http.MethodPost)
	api.HandleFunc("/processes/{pid:[0-9]+}/suspend", h.command(engine.VerbSuspend)).Methods(http.MethodPost)
	api.HandleFunc("/processes/{pid:[0-9]+}/resume", h.command(engine.VerbResume)).Methods(http.MethodPost)
	api.HandleFunc("/processes/{pid:[0-9]+}/priority", h.setPriority).Methods(http.MethodPost)
	api.HandleFunc("/launch", h.launch).Methods(http.MethodPost)
	api.HandleFunc("/history/{metric}", h.getHistory).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.getAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/ack", h.ackAlert).Methods(http.MethodPost)
	api.HandleFunc("/events", h.getEvents).Methods(http.MethodGet)
	api.HandleFunc("/stream", h.stream).Methods(http.MethodGet)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	return r
}
