package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/identify"
)

// IdentifyResponse is the body of a successful POST /api/identify.
type IdentifyResponse struct {
	Result core.PlantInfo `json:"result"`
	Cached bool           `json:"cached"`
	ID     string         `json:"id"`
	Model  string         `json:"model"`
}

// handleIdentify accepts {"image": "<base64 or data URL>"}.
// ?refresh=true bypasses the result cache.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithContext(r.Context())

	var body map[string]json.RawMessage
	if reqErr := decodeJSON(r, &body, identify.TooLargeMessage(s.identify.MaxImageBytes())); reqErr != nil {
		respondError(w, reqErr.status, reqErr.message)
		return
	}

	raw, ok := body["image"]
	if !ok {
		respondError(w, http.StatusBadRequest, core.MsgInvalidImageData)
		return
	}
	var image string
	if err := json.Unmarshal(raw, &image); err != nil {
		respondError(w, http.StatusBadRequest, core.MsgInvalidImageData)
		return
	}

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	res, err := s.identify.Identify(r.Context(), identify.Request{
		Image:     image,
		RequestID: chimw.GetReqID(r.Context()),
		SkipCache: refresh,
	})
	if err != nil {
		respondDomainError(w, log, err, core.MsgIdentifyFailed)
		return
	}

	respondJSON(w, http.StatusOK, IdentifyResponse{
		Result: res.Plant,
		Cached: res.Cached,
		ID:     res.ID,
		Model:  res.Model,
	})
}
