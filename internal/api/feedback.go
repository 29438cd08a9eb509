package api

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/feedback"
)

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Feedback  string `json:"feedback"`
	PlantName string `json:"plantName"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithContext(r.Context())

	var req FeedbackRequest
	if reqErr := decodeJSON(r, &req, msgInvalidJSON); reqErr != nil {
		respondError(w, reqErr.status, reqErr.message)
		return
	}

	fb, err := s.feedback.Submit(r.Context(), feedback.Request{
		RequestID: chimw.GetReqID(r.Context()),
		Name:      req.Name,
		Email:     req.Email,
		PlantName: req.PlantName,
		Message:   req.Feedback,
	})
	if err != nil {
		if fb != nil {
			log.Warn("feedback stored but not delivered", "id", fb.ID)
		}
		respondDomainError(w, log, err, core.MsgFeedbackFailed)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": core.MsgFeedbackDelivered,
		"id":      fb.ID,
	})
}
