package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-leads/core"
)

type handlers struct {
	service      Service
	maxBodyBytes int64
}

type utmParams struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

type submitLeadRequest struct {
	ProjectID        string     `json:"project_id"`
	Email            string     `json:"email"`
	Name             *string    `json:"name"`
	Company          *string    `json:"company"`
	Role             *string    `json:"role"`
	Message          *string    `json:"message"`
	ConsentPrivacy   *bool      `json:"consent_privacy"`
	ConsentMarketing bool       `json:"consent_marketing"`
	UTMParams        *utmParams `json:"utm_params"`
	FormLocation     string     `json:"form_location"`
}

type submitLeadResponse struct {
	LeadID          string `json:"lead_id"`
	Success         bool   `json:"success"`
	IsNew           bool   `json:"is_new"`
	AlreadyUnlocked bool   `json:"already_unlocked"`
}

type referenceRequest struct {
	URL string `json:"url"`
}

type referenceResponse struct {
	Success   bool            `json:"success"`
	PageID    string          `json:"page_id"`
	RecordMap json.RawMessage `json:"recordMap"`
}

type dispatchTestRequest struct {
	ProjectID   string `json:"project_id"`
	WebhookURL  string `json:"webhook_url"`
	WebhookType string `json:"webhook_type"`
}

type dispatchTestResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) submitLead(w http.ResponseWriter, r *http.Request) {
	var req submitLeadRequest
	if err := h.readJSON(w, r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}

	result, err := h.service.Submit(r.Context(), core.SubmitRequest{Candidate: req.candidate(r)})
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, submitLeadResponse{
		LeadID:          result.Record.ID,
		Success:         true,
		IsNew:           result.IsNew,
		AlreadyUnlocked: !result.IsNew,
	})
}

func (req submitLeadRequest) candidate(r *http.Request) core.Candidate {
	privacy := true
	if req.ConsentPrivacy != nil {
		privacy = *req.ConsentPrivacy
	}
	candidate := core.Candidate{
		ScopeID:        req.ProjectID,
		PrimaryContact: req.Email,
		Attributes: core.Attributes{
			Name:     req.Name,
			Company:  req.Company,
			Role:     req.Role,
			FreeText: req.Message,
		},
		Consents: core.Consents{Privacy: privacy, Marketing: req.ConsentMarketing},
		Origin: core.OriginMetadata{
			UserAgent: r.UserAgent(),
			ClientIP:  clientIP(r),
			Surface:   core.Surface(strings.TrimSpace(req.FormLocation)),
		},
	}
	if utm := req.UTMParams; utm != nil {
		attribution := map[string]string{}
		for key, value := range map[string]string{
			core.AttributionSource:   utm.Source,
			core.AttributionMedium:   utm.Medium,
			core.AttributionCampaign: utm.Campaign,
			core.AttributionTerm:     utm.Term,
			core.AttributionContent:  utm.Content,
		} {
			if value = strings.TrimSpace(value); value != "" {
				attribution[key] = value
			}
		}
		if len(attribution) > 0 {
			candidate.Attribution = attribution
		}
	}
	return candidate
}

func (h *handlers) resolveReference(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if r.Method == http.MethodPost {
		var req referenceRequest
		if err := h.readJSON(w, r, &req); err != nil {
			writeProblem(w, r, err)
			return
		}
		rawURL = req.URL
	}
	doc, err := h.service.Resolve(r.Context(), rawURL)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, referenceResponse{Success: true, PageID: doc.CanonicalID, RecordMap: doc.Content})
}

func (h *handlers) resolveReferenceByID(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.ResolveByID(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, referenceResponse{Success: true, PageID: doc.CanonicalID, RecordMap: doc.Content})
}

func (h *handlers) dispatchTest(w http.ResponseWriter, r *http.Request) {
	var req dispatchTestRequest
	if err := h.readJSON(w, r, &req); err != nil {
		writeProblem(w, r, err)
		return
	}
	kind := core.TargetKind(req.WebhookType)
	if strings.TrimSpace(req.WebhookType) == "" {
		kind = core.TargetKindGeneric
	}
	outcome, err := h.service.DispatchTest(r.Context(), core.DispatchTestRequest{
		ScopeID:  req.ProjectID,
		CallerID: CallerID(r.Context()),
		Target:   core.DeliveryTarget{Kind: kind, Destination: req.WebhookURL},
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchTestResponse{
		Success:    outcome.Success,
		StatusCode: outcome.StatusCode,
		Message:    outcome.Message,
	})
}

func (h *handlers) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer body.Close()

	decoder := json.NewDecoder(body)
	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "httpapi: request body too large").
				WithCode(http.StatusRequestEntityTooLarge).
				WithTextCode(core.ServiceErrorBadInput)
		case errors.Is(err, io.EOF):
			return goerrors.New("httpapi: request body is required", goerrors.CategoryBadInput).
				WithCode(http.StatusBadRequest).
				WithTextCode(core.ServiceErrorBadInput)
		default:
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "httpapi: invalid JSON body").
				WithCode(http.StatusBadRequest).
				WithTextCode(core.ServiceErrorBadInput)
		}
	}
	return nil
}

// clientIP prefers the first X-Forwarded-For hop, then the peer address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
