package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/mqtt"
	"github.com/m1ckyb/commutecompute-core/internal/pairing"
)

// pairingResponse is the wire shape for pairing endpoints. The webhook URL
// field is camelCase for compatibility with the device firmware's parser.
type pairingResponse struct {
	Code       string `json:"code"`
	Status     string `json:"status"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// submitConfigRequest is the wizard's config submission body. The zone-fetch
// URL itself is server-assigned; the wizard only contributes extras.
type submitConfigRequest struct {
	Extra map[string]string `json:"extra,omitempty"`
}

func toPairingResponse(session *pairing.Session) pairingResponse {
	resp := pairingResponse{
		Code:   session.Code,
		Status: string(session.Status),
	}
	if session.Config != nil {
		resp.WebhookURL = session.Config.WebhookURL
	}
	return resp
}

// handleCreatePairing allocates a fresh pairing code.
//
// POST /api/pair
//
// Responses:
//   - 201: {code, status}
//   - 503: code space exhausted (all live codes in use)
func (s *Server) handleCreatePairing(w http.ResponseWriter, r *http.Request) {
	session, err := s.pairing.CreateCode(r.Context())
	if err != nil {
		if errors.Is(err, pairing.ErrCodeSpaceExhausted) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "no pairing codes available")
			return
		}
		s.logger.Error("pairing code creation failed", "error", err)
		writeInternalError(w, "pairing code creation failed")
		return
	}

	writeJSON(w, http.StatusCreated, toPairingResponse(session))
}

// handlePollPairing reports a pairing code's current state. Devices poll
// this until the wizard binds configuration; once paired the response
// carries the webhook URL.
//
// GET /api/pair/{code}
//
// Responses:
//   - 200: {code, status, webhookUrl?}
//   - 404: unknown or expired code
func (s *Server) handlePollPairing(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	session, err := s.pairing.Poll(r.Context(), code)
	if err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			writeNotFound(w, "unknown pairing code")
			return
		}
		s.logger.Error("pairing poll failed", "error", err)
		writeInternalError(w, "pairing poll failed")
		return
	}

	writeJSON(w, http.StatusOK, toPairingResponse(session))
}

// handleSubmitConfig binds configuration to a waiting pairing code. Called
// by the setup wizard after the user enters the code shown on the display.
//
// POST /api/pair/{code}/config
//
// Responses:
//   - 200: {code, status, webhookUrl}
//   - 404: unknown or expired code
//   - 409: code already paired
//   - 412: server setup incomplete (no public URL to hand out)
func (s *Server) handleSubmitConfig(w http.ResponseWriter, r *http.Request) {
	if s.webhookURL == "" {
		writeError(w, http.StatusPreconditionFailed, ErrCodeSetupRequired, "server setup incomplete")
		return
	}

	code := chi.URLParam(r, "code")

	var req submitConfigRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	cfg := pairing.Config{
		WebhookURL: s.webhookURL,
		Extra:      req.Extra,
	}
	if err := s.pairing.SubmitConfig(r.Context(), code, cfg); err != nil {
		switch {
		case errors.Is(err, pairing.ErrNotFound):
			writeNotFound(w, "unknown pairing code")
		case errors.Is(err, pairing.ErrAlreadyPaired):
			writeError(w, http.StatusConflict, ErrCodeConflict, "pairing code already used")
		case errors.Is(err, pairing.ErrInvalidConfig):
			writeBadRequest(w, "invalid pairing configuration")
		default:
			s.logger.Error("pairing config submission failed", "error", err)
			writeInternalError(w, "pairing config submission failed")
		}
		return
	}

	session, err := s.pairing.Poll(r.Context(), code)
	if err != nil {
		s.logger.Error("pairing poll after submit failed", "error", err)
		writeInternalError(w, "pairing config submission failed")
		return
	}

	s.publishPaired(session.Code)

	writeJSON(w, http.StatusOK, toPairingResponse(session))
}

// publishPaired announces a completed pairing on MQTT, if connected. The
// code identifies the pairing; the device key is only known once the
// device starts fetching.
func (s *Server) publishPaired(code string) {
	if s.mqtt == nil || !s.mqtt.IsConnected() {
		return
	}

	topic := mqtt.Topics{}.DevicePaired(code)
	if err := s.mqtt.Publish(topic, []byte(`{"status":"paired"}`), 1, false); err != nil {
		s.logger.Warn("pairing publish failed", "topic", topic, "error", err)
	}
}
