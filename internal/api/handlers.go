package api

import (
	"net/http"

	"go.uber.org/zap"
)

const ndjsonContentType = "application/x-ndjson"

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// hoursCommand acknowledges the slash command immediately; the answer is
// delivered later as an ephemeral message.
func (s *Server) hoursCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.logger.Error("parse hours command form", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "An unexpected error occurred",
			Details: err.Error(),
		})
		return
	}
	userID := r.PostForm.Get("user_id")
	channelID := r.PostForm.Get("channel_id")
	if userID == "" || channelID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and channel_id are required")
		return
	}

	ack := s.commands.HandleHoursCommand(r.Context(), userID, channelID)
	s.writeJSON(w, http.StatusOK, ack)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	data, err := s.snapshots.ReadAll(r.Context())
	if err != nil {
		s.logger.Error("read snapshot log", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read snapshot log")
		return
	}
	w.Header().Set("Content-Type", ndjsonContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write snapshot log", zap.Error(err))
	}
}
