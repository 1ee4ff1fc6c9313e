package reports

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/audit"
	"perf-report-backend/internal/shared/server/middleware"
	"perf-report-backend/internal/shared/server/respond"
	"perf-report-backend/report/model"
	"perf-report-backend/report/render"
)

// Handler wires HTTP handlers to the reports service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/ingest", h.ingest)
	rg.GET("/reports", h.listReports)
	rg.GET("/reports/:id", h.getReport)
	rg.GET("/reports/:id/export", h.exportReport)
	rg.GET("/reports/:id/raw", h.rawResponse)
}

type analyzeRequest struct {
	URL   string        `json:"url"`
	Audit audit.Metrics `json:"audit"`
}

type ingestRequest struct {
	Text  string        `json:"text"`
	Audit audit.Metrics `json:"audit"`
}

type ingestResponse struct {
	Stage          string       `json:"stage"`
	Truncated      bool         `json:"truncated"`
	Fallback       bool         `json:"fallback"`
	FallbackReason string       `json:"fallbackReason,omitempty"`
	RepairRules    []string     `json:"repairRules"`
	Report         model.Report `json:"report"`
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	rec, err := h.Svc.Analyze(ctx, req.URL, req.Audit)
	if err != nil {
		switch {
		case errors.Is(err, audit.ErrInvalidURL):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), []map[string]string{
				{"field": "url", "issue": "invalid"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to analyze page", nil)
		}
		return
	}

	c.Set(middleware.ReportIDKey, rec.ID)
	c.Set(middleware.IngestStageKey, rec.Stage)
	c.Set(middleware.FallbackReasonKey, rec.FallbackReason)
	respond.Created(c, rec)
}

func (h *Handler) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	out := h.Svc.Ingest(ctx, req.Text, req.Audit)

	c.Set(middleware.IngestStageKey, string(out.Stage))
	c.Set(middleware.FallbackReasonKey, string(out.Reason))
	respond.OK(c, ingestResponse{
		Stage:          string(out.Stage),
		Truncated:      out.Truncated,
		Fallback:       out.Fallback,
		FallbackReason: string(out.Reason),
		RepairRules:    nonNilRules(out.RepairRules),
		Report:         out.Report,
	})
}

func (h *Handler) listReports(c *gin.Context) {
	limit := DefaultListLimit
	offset := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > MaxListLimit {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, fmt.Sprintf("limit must be between 1 and %d", MaxListLimit), nil)
			return
		}
		limit = parsed
	}
	if v := c.Query("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "offset must be a non-negative integer", nil)
			return
		}
		offset = parsed
	}

	records, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list reports", nil)
		return
	}
	items := make([]Summary, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.Summarize())
	}
	respond.OK(c, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) getReport(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) exportReport(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "markdown")))
	if format != "markdown" && format != "md" && format != "json" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "format must be markdown or json", nil)
		return
	}

	rec, ok := h.lookup(c)
	if !ok {
		return
	}

	if format == "json" {
		respond.Attachment(c, "report-"+rec.ID+".json")
		respond.OK(c, rec.Report)
		return
	}
	body, err := render.RenderMarkdown(rec.URL, rec.Report)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to render report", nil)
		return
	}
	respond.Attachment(c, "report-"+rec.ID+".md")
	respond.Document(c, "text/markdown; charset=utf-8", body)
}

func (h *Handler) rawResponse(c *gin.Context) {
	text, err := h.Svc.Raw(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "report not found", nil)
		case errors.Is(err, ErrNoArchive):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "no archived model response for this report", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to load model response", nil)
		}
		return
	}
	respond.Document(c, "text/plain; charset=utf-8", []byte(text))
}

func (h *Handler) lookup(c *gin.Context) (Record, bool) {
	rec, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "report not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to fetch report", nil)
		}
		return Record{}, false
	}
	c.Set(middleware.ReportIDKey, rec.ID)
	return rec, true
}
