package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/sluicelabs/sluice/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.InvalidArgument:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.ResourceExhausted:
		status = http.StatusTooManyRequests
	case errs.Unavailable:
		status = http.StatusServiceUnavailable
	case errs.FailedPrecondition:
		status = http.StatusConflict
	case errs.Cancelled:
		status = 499 // client closed request, matching the nginx/gRPC convention
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// publishRequest mirrors spec §6's PublishRequest. Payload is JSON's
// standard base64-encoded []byte.
type publishRequest struct {
	Topic      string            `json:"topic"`
	Payload    []byte            `json:"payload"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type publishResponse struct {
	MessageID string `json:"message_id"`
	Sequence  uint64 `json:"sequence"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.InvalidArgument, "http.handlePublish", err))
		return
	}
	res, err := s.writer.Publish(r.Context(), req.Topic, req.Attributes, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{MessageID: res.MessageID.String(), Sequence: res.Sequence})
}

type topicView struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

type listTopicsResponse struct {
	Topics []topicView `json:"topics"`
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	topics, err := s.store.ListTopics()
	if err != nil {
		writeError(w, errs.Wrap(errs.Internal, "http.handleListTopics", err))
		return
	}
	out := make([]topicView, len(topics))
	for i, t := range topics {
		out[i] = topicView{Name: t.Name, CreatedAtMs: t.CreatedAt}
	}
	writeJSON(w, http.StatusOK, listTopicsResponse{Topics: out})
}
