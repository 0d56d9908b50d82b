package controller

import (
	"encoding/json"
	"net/http"
)

func (c controller) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write json", "error", err)
	}
}

func (c controller) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := c.listPublicRooms(r.Context())
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to list rooms", "error", err)
		c.writeJSON(w, r, http.StatusInternalServerError, ErrorOutput{Message: "internal error", Code: codeInternal})
		return
	}

	c.writeJSON(w, r, http.StatusOK, map[string]any{"rooms": rooms})
}

func (c controller) healthz(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
