package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"call-insights-platform/internal/auth"
	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/company"
	"call-insights-platform/internal/ingest"
	"call-insights-platform/internal/insight"
	"call-insights-platform/internal/report"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Ingest    *ingest.Gate
	Calls     calls.Store
	Insights  insight.Store
	Reports   *report.Engine
	Companies *company.Service
}

// defaultReportWindow is used when a report request omits its bounds.
const defaultReportWindow = 30 * 24 * time.Hour

// --- Calls ---

// SubmitCall accepts a multipart upload: an `audio` file part plus metadata
// form fields. On success the call is queued for analysis and returned in
// state `received`.
func (h Handlers) SubmitCall(c *gin.Context) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "audio file part required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable audio part"})
		return
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable audio part"})
		return
	}

	sub := ingest.Submission{
		ExternalID: c.PostForm("external_id"),
		Caller:     c.PostForm("caller"),
		Callee:     c.PostForm("callee"),
	}
	if v := c.PostForm("duration_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must be an integer"})
			return
		}
		sub.DurationSeconds = n
	}
	if t, ok, err := optionalTime(c.PostForm("start_time")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "start_time must be RFC3339"})
		return
	} else if ok {
		sub.StartTime = &t
	}
	if t, ok, err := optionalTime(c.PostForm("end_time")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "end_time must be RFC3339"})
		return
	} else if ok {
		sub.EndTime = &t
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	rec, err := h.Ingest.Submit(c.Request.Context(), companyID, sub, audio, mimeType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, rec)
}

func (h Handlers) ListCalls(c *gin.Context) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	from, to, err := windowFromQuery(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := calls.ListFilter{}
	if v := c.Query("state"); v != "" {
		st := calls.State(v)
		if !st.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown state"})
			return
		}
		filter.State = st
	}
	var parseErr error
	filter.DurationAtLeast, parseErr = optionalInt(c, "duration_gt", parseErr)
	filter.DurationAtMost, parseErr = optionalInt(c, "duration_lt", parseErr)
	filter.Limit, parseErr = optionalInt(c, "limit", parseErr)
	filter.Offset, parseErr = optionalInt(c, "offset", parseErr)
	if parseErr != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": parseErr.Error()})
		return
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	recs, err := h.Calls.ListByCompanyAndWindow(c.Request.Context(), companyID, from, to, filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs, "count": len(recs)})
}

func (h Handlers) GetCall(c *gin.Context) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	rec, err := h.Calls.GetByID(c.Request.Context(), companyID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetCallInsight returns the current insight for a call. A call that exists
// but has not finished analysis yet gets a 404 with a distinct message.
func (h Handlers) GetCallInsight(c *gin.Context) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	callID := c.Param("id")
	if _, err := h.Calls.GetByID(c.Request.Context(), companyID, callID); err != nil {
		abortWithError(c, err)
		return
	}
	ins, err := h.Insights.GetCurrentByCall(c.Request.Context(), companyID, callID)
	if errors.Is(err, insight.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "insight not ready"})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ins)
}

// --- Reports ---

type generateReportRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

func (h Handlers) GenerateReport(c *gin.Context) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req generateReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	to := time.Now().UTC()
	if req.To != nil {
		to = req.To.UTC()
	}
	from := to.Add(-defaultReportWindow)
	if req.From != nil {
		from = req.From.UTC()
	}

	rep, err := h.Reports.Generate(c.Request.Context(), companyID, from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h Handlers) ListReports(c *gin.Context) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var parseErr error
	limit, parseErr := optionalInt(c, "limit", parseErr)
	offset, parseErr := optionalInt(c, "offset", parseErr)
	if parseErr != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": parseErr.Error()})
		return
	}
	reports, err := h.Reports.List(c.Request.Context(), companyID, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (h Handlers) GetReport(c *gin.Context) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	rep, err := h.Reports.Get(c.Request.Context(), companyID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// --- Admin ---

type provisionCompanyRequest struct {
	Name string `json:"name"`
}

// ProvisionCompany creates a tenant and returns its API key. The key is only
// ever shown in this response.
func (h Handlers) ProvisionCompany(c *gin.Context) {
	var req provisionCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	co, err := h.Companies.Provision(c.Request.Context(), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"company": co,
		"api_key": co.APIKey,
	})
}

func (h Handlers) DisableCompany(c *gin.Context) {
	if err := h.Companies.Disable(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

type regenReportsRequest struct {
	Allowed *bool `json:"allowed"`
}

func (h Handlers) SetCompanyRegenReports(c *gin.Context) {
	var req regenReportsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Allowed == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "allowed is required"})
		return
	}
	if err := h.Companies.SetRegenReports(c.Request.Context(), c.Param("id"), *req.Allowed); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": *req.Allowed})
}

// --- helpers ---

// abortWithError maps service sentinels to HTTP statuses. Unmatched errors
// become a 500 without leaking internals.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ingest.ErrValidation),
		errors.Is(err, report.ErrInvalidWindow),
		errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, company.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, company.ErrAuthFailed):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
	case errors.Is(err, calls.ErrNotFound),
		errors.Is(err, insight.ErrNotFound),
		errors.Is(err, report.ErrNotFound),
		errors.Is(err, company.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func optionalTime(v string) (time.Time, bool, error) {
	if v == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func optionalInt(c *gin.Context, key string, prior error) (int, error) {
	if prior != nil {
		return 0, prior
	}
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

func windowFromQuery(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if t, ok, err := optionalTime(c.Query("to")); err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be RFC3339")
	} else if ok {
		to = t.UTC()
	}
	from := to.Add(-defaultReportWindow)
	if t, ok, err := optionalTime(c.Query("from")); err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be RFC3339")
	} else if ok {
		from = t.UTC()
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must precede to")
	}
	return from, to, nil
}
