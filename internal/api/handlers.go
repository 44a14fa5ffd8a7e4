package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vigil-mon/agent/internal/advisor"
	"github.com/vigil-mon/agent/internal/control"
	"github.com/vigil-mon/agent/internal/engine"
	"github.com/vigil-mon/agent/internal/history"
)

type handler struct {
	eng Engine
}

func newHandler(eng Engine) *handler {
	return &handler{eng: eng}
}

type errorResponse struct {
	Error string       `json:"error"`
	Kind  control.Kind `json:"kind,omitempty"`
}

type commandResponse struct {
	CommandID string `json:"commandId"`
	Status    string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, kind control.Kind) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// statusForKind maps the control error taxonomy to HTTP statuses.
func statusForKind(kind control.Kind) int {
	switch kind {
	case control.KindNotFound:
		return http.StatusNotFound
	case control.KindPermissionDenied:
		return http.StatusForbidden
	case control.KindUnsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) getProcesses(w http.ResponseWriter, r *http.Request) {
	state := h.eng.State()
	records := engine.Filter(state.Processes, r.URL.Query().Get("filter"))

	key := engine.ParseSortKey(r.URL.Query().Get("sort"))
	desc := engine.DefaultDesc(key)
	switch r.URL.Query().Get("dir") {
	case "asc":
		desc = false
	case "desc":
		desc = true
	}
	engine.Sort(records, key, desc)
	writeJSON(w, http.StatusOK, records)
}

// targetPID parses the pid path variable and checks it against the current
// table, so commands for pids the engine has never seen fail fast.
func (h *handler) targetPID(w http.ResponseWriter, r *http.Request) (int32, bool) {
	raw := mux.Vars(r)["pid"]
	pid64, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || pid64 <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pid "+raw, "")
		return 0, false
	}
	pid := int32(pid64)

	for _, rec := range h.eng.State().Processes {
		if rec.PID == pid {
			return pid, true
		}
	}
	writeError(w, statusForKind(control.KindNotFound), "no such process "+raw, control.KindNotFound)
	return 0, false
}

func (h *handler) command(verb engine.Verb) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid, ok := h.targetPID(w, r)
		if !ok {
			return
		}
		id := h.eng.Submit(engine.NewCommand(verb, pid))
		writeJSON(w, http.StatusAccepted, commandResponse{CommandID: id, Status: "queued"})
	}
}

func (h *handler) setPriority(w http.ResponseWriter, r *http.Request) {
	pid, ok := h.targetPID(w, r)
	if !ok {
		return
	}

	var body struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	level, err := control.ParseLevel(body.Level)
	if err != nil {
		writeError(w, statusForKind(control.KindUnsupported), err.Error(), control.KindUnsupported)
		return
	}

	cmd := engine.NewCommand(engine.VerbSetPriority, pid)
	cmd.Level = level
	id := h.eng.Submit(cmd)
	writeJSON(w, http.StatusAccepted, commandResponse{CommandID: id, Status: "queued"})
}

func (h *handler) launch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if body.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required", "")
		return
	}

	id := h.eng.Submit(engine.NewLaunchCommand(body.Command, body.Args))
	writeJSON(w, http.StatusAccepted, commandResponse{CommandID: id, Status: "queued"})
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	metric := history.Metric(mux.Vars(r)["metric"])
	state := h.eng.State()
	series, ok := state.History[metric]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown metric "+string(metric), "")
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (h *handler) getAlerts(w http.ResponseWriter, r *http.Request) {
	state := h.eng.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":      state.Alerts,
		"suggestions": state.Suggestions,
	})
}

func (h *handler) ackAlert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind advisor.Kind `json:"kind"`
		Rule string       `json:"rule"`
		PID  int32        `json:"pid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	if !h.eng.Acknowledge(body.Kind, body.Rule, body.PID) {
		writeError(w, http.StatusNotFound, "no matching active alert", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (h *handler) getEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.RecentEvents())
}
