package api

import (
	"net/http"

	"dialerctl/internal/webhook"
)

func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) bool {
	canonicalURL := s.publicBaseURL + r.URL.Path
	sig := r.Header.Get("X-Twilio-Signature")
	if err := webhook.RequireSignature(s.validateSignature, s.webhookSecret, canonicalURL, r.Form, sig); err != nil {
		writeAppError(w, err)
		return false
	}
	return true
}

func (s *Server) writeXML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	if !s.verifyWebhook(w, r) {
		return
	}
	payload := webhook.StatusCallbackPayload{
		CallID:       r.FormValue("call_id"),
		Status:       r.FormValue("status"),
		From:         r.FormValue("from"),
		To:           r.FormValue("to"),
		Duration:     r.FormValue("duration"),
		ErrorCode:    r.FormValue("error_code"),
		ErrorMessage: r.FormValue("error_message"),
	}
	s.writeXML(w, s.ingest.HandleStatus(r.Context(), payload))
}

func (s *Server) handleWebhookAMD(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	if !s.verifyWebhook(w, r) {
		return
	}
	payload := webhook.AMDCallbackPayload{
		CallID:     r.FormValue("call_id"),
		AnsweredBy: r.FormValue("answered_by"),
	}
	s.writeXML(w, s.ingest.HandleAMD(r.Context(), payload))
}

func (s *Server) handleWebhookVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	if !s.verifyWebhook(w, r) {
		return
	}
	payload := webhook.VoiceCallbackPayload{
		CallID: r.FormValue("call_id"),
		From:   r.FormValue("from"),
		To:     r.FormValue("to"),
	}
	s.writeXML(w, s.ingest.HandleVoice(r.Context(), payload))
}
