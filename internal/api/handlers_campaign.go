package api

import (
	"encoding/json"
	"io"
	"net/http"

	"dialerctl/internal/csvimport"
	"dialerctl/internal/domain"
	"dialerctl/pkg/apperrors"
)

type createCampaignRequest struct {
	Name      string  `json:"name"`
	DialRatio float64 `json:"dial_ratio"`
	CallerID  string  `json:"caller_id"`
}

type campaignResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	DialRatio   float64 `json:"dial_ratio"`
	CallerID    string  `json:"caller_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	return campaignResponse{
		ID:        c.ID,
		Name:      c.Name,
		State:     string(c.CurrentState()),
		DialRatio: c.DialRatio,
		CallerID:  c.CallerID,
		CreatedAt: c.CreatedAt.Format(timeFormat),
		UpdatedAt: c.UpdatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	campaign, err := domain.NewCampaign(req.Name, req.DialRatio)
	if err != nil {
		writeAppError(w, err)
		return
	}
	campaign.CallerID = req.CallerID

	if err := s.repo.CreateCampaign(r.Context(), campaign); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCampaignResponse(campaign))
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.repo.ListCampaigns(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	out := make([]campaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toCampaignResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetCampaign(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

func (s *Server) handleCampaignStats(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetCampaign(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	stats := domain.ComputeStats(c)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending":         stats.Pending,
		"calling":         stats.Calling,
		"connected":       stats.Connected,
		"completed":       stats.Completed,
		"failed":          stats.Failed,
		"dnc":             stats.DNC,
		"abandoned_leads": stats.AbandonedLeads,
		"abandon_rate":    stats.AbandonRate(),
	})
}

func (s *Server) campaignLifecycle(w http.ResponseWriter, r *http.Request, transition func(*domain.Campaign) error, onSuccess func(campaignID string)) {
	id := r.PathValue("id")
	c, err := s.repo.GetCampaign(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := transition(c); err != nil {
		writeAppError(w, err)
		return
	}
	if err := s.repo.UpdateCampaign(r.Context(), c); err != nil {
		writeAppError(w, err)
		return
	}
	if onSuccess != nil {
		onSuccess(id)
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

func (s *Server) handleCampaignStart(w http.ResponseWriter, r *http.Request) {
	s.campaignLifecycle(w, r, (*domain.Campaign).Start, func(id string) { s.orch.StartCampaign(r.Context(), id) })
}

func (s *Server) handleCampaignPause(w http.ResponseWriter, r *http.Request) {
	s.campaignLifecycle(w, r, (*domain.Campaign).Pause, nil)
}

func (s *Server) handleCampaignResume(w http.ResponseWriter, r *http.Request) {
	s.campaignLifecycle(w, r, (*domain.Campaign).Resume, nil)
}

func (s *Server) handleCampaignStop(w http.ResponseWriter, r *http.Request) {
	s.campaignLifecycle(w, r, (*domain.Campaign).Stop, func(id string) { s.orch.StopCampaign(id) })
}

type addLeadRequest struct {
	Phone   string `json:"phone_number"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Notes   string `json:"notes"`
}

type leadResponse struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Phone      string `json:"phone_number"`
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Email      string `json:"email,omitempty"`
	Notes      string `json:"notes,omitempty"`
	State      string `json:"state"`
	Outcome    string `json:"outcome,omitempty"`
	FailReason string `json:"fail_reason,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

func toLeadResponse(l *domain.Lead) leadResponse {
	snap := l.Snapshot()
	return leadResponse{
		ID:         snap.ID,
		CampaignID: snap.CampaignID,
		Phone:      snap.Phone,
		Name:       snap.Name,
		Company:    snap.Company,
		Email:      snap.Email,
		Notes:      snap.Notes,
		State:      string(snap.State),
		Outcome:    snap.Outcome,
		FailReason: snap.FailReason,
		RetryCount: snap.RetryCount,
		MaxRetries: snap.MaxRetries,
	}
}

func (s *Server) handleAddLead(w http.ResponseWriter, r *http.Request) {
	campaignID := r.PathValue("id")
	var req addLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.repo.GetCampaign(r.Context(), campaignID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	lead, err := c.AddLead(req.Phone)
	if err != nil {
		writeAppError(w, err)
		return
	}
	lead.Name = req.Name
	lead.Company = req.Company
	lead.Email = req.Email
	lead.Notes = req.Notes

	if err := s.repo.AddLead(r.Context(), campaignID, lead); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeadResponse(lead))
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.repo.ListLeads(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	out := make([]leadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, toLeadResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

type importErrorEntry struct {
	Row   int    `json:"row,omitempty"`
	Phone string `json:"phone,omitempty"`
	Error string `json:"error"`
}

type importResponse struct {
	ImportedCount int                 `json:"imported_count"`
	SkippedCount  int                 `json:"skipped_count"`
	Errors        []importErrorEntry  `json:"errors"`
}

// handleImportLeads is the multipart CSV import endpoint (spec §6),
// grounded on the teacher's handleCampaignUpload for multipart
// handling and wired to the csvimport package for parsing.
func (s *Server) handleImportLeads(w http.ResponseWriter, r *http.Request) {
	campaignID := r.PathValue("id")

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing multipart file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	parsed, err := csvimport.Parse(content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.repo.GetCampaign(r.Context(), campaignID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := importResponse{Errors: make([]importErrorEntry, 0, len(parsed.Errors))}
	for _, e := range parsed.Errors {
		resp.Errors = append(resp.Errors, importErrorEntry{Row: e.Row, Error: e.Error})
		resp.SkippedCount++
	}

	for _, pl := range parsed.Leads {
		lead, err := c.AddLead(pl.Phone)
		if err != nil {
			var ae *apperrors.AppError
			msg := err.Error()
			if asAppError(err, &ae) {
				msg = ae.Message
			}
			resp.Errors = append(resp.Errors, importErrorEntry{Phone: pl.Phone, Error: msg})
			resp.SkippedCount++
			continue
		}
		lead.Name = pl.Name
		lead.Company = pl.Company
		lead.Email = pl.Email
		lead.Notes = pl.Notes

		if err := s.repo.AddLead(r.Context(), campaignID, lead); err != nil {
			resp.Errors = append(resp.Errors, importErrorEntry{Phone: pl.Phone, Error: err.Error()})
			resp.SkippedCount++
			continue
		}
		resp.ImportedCount++
	}

	writeJSON(w, http.StatusOK, resp)
}

func asAppError(err error, target **apperrors.AppError) bool {
	ae, ok := err.(*apperrors.AppError)
	if ok {
		*target = ae
	}
	return ok
}

// handleIssueToken issues a telephony client token for the
// authenticated principal (spec §6 /twilio/token).
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal in context")
		return
	}
	token, err := s.phone.IssueClientToken(r.Context(), claims.PrincipalID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
