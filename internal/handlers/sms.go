package handlers

import (
	"net/http"
	"strings"

	"santa-tracker-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// SMSHandler receives provider callbacks for inbound texts
type SMSHandler struct {
	inboundService *services.InboundService
}

// NewSMSHandler creates a new SMS handler
func NewSMSHandler(inboundService *services.InboundService) *SMSHandler {
	return &SMSHandler{
		inboundService: inboundService,
	}
}

// Webhook handles POST /api/sms/webhook. The provider gets an empty XML
// acknowledgment for every well-formed message, matched or not.
func (h *SMSHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	from := strings.TrimSpace(r.PostForm.Get("From"))
	body := r.PostForm.Get("Body")
	if from == "" || body == "" {
		respondError(w, "From and Body are required", http.StatusBadRequest)
		return
	}

	result, err := h.inboundService.HandleInbound(r.Context(), from, body)
	if err != nil {
		log.Error().Err(err).Str("from", from).Msg("Failed to handle inbound SMS")
		respondAck(w, http.StatusInternalServerError)
		return
	}
	if result != nil {
		log.Info().
			Str("visit_id", result.Visit.ID).
			Str("classification", result.Classification).
			Msg("Inbound SMS applied")
	}

	respondAck(w, http.StatusOK)
}

// DeliveryStatus handles POST /api/sms/status, the provider's delivery report
// for outbound texts. Reports are logged, not stored.
func (h *SMSHandler) DeliveryStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("Unreadable SMS status callback")
		respondAck(w, http.StatusBadRequest)
		return
	}

	status := r.PostForm.Get("MessageStatus")
	event := log.Info()
	if status == "failed" || status == "undelivered" {
		event = log.Warn().Str("error_code", r.PostForm.Get("ErrorCode"))
	}
	event.
		Str("message_sid", r.PostForm.Get("MessageSid")).
		Str("status", status).
		Msg("SMS status update")

	respondAck(w, http.StatusOK)
}

// respondAck answers the provider with the empty XML document it expects,
// whatever the outcome.
func respondAck(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(services.AckXML))
}
