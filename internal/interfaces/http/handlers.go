package http

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/application/workflow"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	domainwf "github.com/esunday5/staff-portal/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services      Services
	maxUploadSize int64
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadSize int64, logger Logger) *Handlers {
	return &Handlers{
		services:      services,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ReviewRequest is the body of PUT /review_requests/:id
type ReviewRequest struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Version *int64 `json:"version"`
}

// ResubmitRequest is the optional body of POST /requests/:id/resubmit
type ResubmitRequest struct {
	Version *int64 `json:"version"`
}

// RequestView is a request plus what can happen to it next
type RequestView struct {
	*entity.Request
	RequiredRole entity.RoleName    `json:"required_role,omitempty"`
	Decisions    []domainwf.Trigger `json:"decisions,omitempty"`
}

// SettingsRequest is the body of PUT /notification_settings
type SettingsRequest struct {
	EmailEnabled bool `json:"email_enabled"`
	SMSEnabled   bool `json:"sms_enabled"`
	PushEnabled  bool `json:"push_enabled"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if h.services.Health != nil {
		healthy, details := h.services.Health(c.Request.Context())
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// Login handles POST /login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperror.Unauthenticated("username and password are required"))
		return
	}

	user, err := h.services.Directory.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// CreateCashAdvance handles POST /cash_advance
func (h *Handlers) CreateCashAdvance(c *gin.Context) {
	h.createRequest(c, entity.RequestTypeCashAdvance)
}

// CreateOpexCapexRetirement handles POST /opex_capex_retirement
func (h *Handlers) CreateOpexCapexRetirement(c *gin.Context) {
	h.createRequest(c, entity.RequestTypeOpexCapexRetirement)
}

// CreatePettyCashAdvance handles POST /petty_cash_advance
func (h *Handlers) CreatePettyCashAdvance(c *gin.Context) {
	h.createRequest(c, entity.RequestTypePettyCashAdvance)
}

// CreatePettyCashRetirement handles POST /petty_cash_retirement
func (h *Handlers) CreatePettyCashRetirement(c *gin.Context) {
	h.createRequest(c, entity.RequestTypePettyCashRetirement)
}

// CreateStationeryRequest handles POST /stationery_request
func (h *Handlers) CreateStationeryRequest(c *gin.Context) {
	h.createRequest(c, entity.RequestTypeStationery)
}

// createRequest accepts a JSON body, or a multipart form whose "data" part holds
// the JSON fields and whose file parts are named after the document kind.
func (h *Handlers) createRequest(c *gin.Context, rt entity.RequestType) {
	user := currentUser(c)

	input, err := h.bindCreateInput(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	input.Type = rt

	result, err := h.services.Requests.Create(c.Request.Context(), user, *input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := Response{Success: true, Data: result}
	if result.Routing != nil {
		resp.Warning = result.Routing.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handlers) bindCreateInput(c *gin.Context) (*service.CreateRequestInput, error) {
	var input service.CreateRequestInput

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&input); err != nil {
			return nil, badRequest("body", "must be valid JSON")
		}
		return &input, nil
	}

	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, badRequest("body", "invalid multipart form")
	}

	if data := form.Value["data"]; len(data) > 0 {
		if err := json.Unmarshal([]byte(data[0]), &input); err != nil {
			return nil, badRequest("data", "must be valid JSON")
		}
	}

	for field, headers := range form.File {
		for _, fh := range headers {
			content, err := readUpload(fh)
			if err != nil {
				return nil, badRequest(field, "could not read upload")
			}
			input.Documents = append(input.Documents, service.DocumentUpload{
				Kind:        entity.DocumentKind(field),
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Content:     content,
			})
		}
	}
	return &input, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ListReviewRequests handles GET /review_requests
func (h *Handlers) ListReviewRequests(c *gin.Context) {
	reqs, err := h.services.Requests.ListReviewQueue(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, h.views(reqs))
}

// ReviewRequest handles PUT /review_requests/:id
func (h *Handlers) ReviewRequest(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, badRequest("body", "must be valid JSON"))
		return
	}
	decision, ok := domainwf.ParseDecision(req.Status)
	if !ok {
		respondError(c, h.logger, badRequest("status", "must be one of Approved, Rejected, Returned"))
		return
	}

	result, err := h.services.Workflow.ApplyDecision(c.Request.Context(), workflow.DecisionInput{
		RequestID:       id,
		Actor:           currentUser(c),
		Decision:        decision,
		Reason:          req.Reason,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// ListRequests handles GET /requests. Officers see their own requests in
// every state; other roles see open requests, filtered by query.
func (h *Handlers) ListRequests(c *gin.Context) {
	user := currentUser(c)

	filter := port.RequestFilter{
		Type:   entity.RequestType(c.Query("type")),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		respondError(c, h.logger, badRequest("type", "unknown request type"))
		return
	}
	for _, s := range c.QueryArray("status") {
		state := domainwf.State(s)
		if !state.IsValid() {
			respondError(c, h.logger, badRequest("status", "unknown status "+s))
			return
		}
		filter.Statuses = append(filter.Statuses, state)
	}

	switch {
	case user.HasRole(entity.RoleOfficer):
		filter.OfficerID = &user.ID
		if len(filter.Statuses) == 0 {
			filter.Statuses = domainwf.AllStates()
		}
	case user.DepartmentScoped:
		if user.DepartmentID == nil {
			respondOK(c, http.StatusOK, []RequestView{})
			return
		}
		filter.DepartmentID = user.DepartmentID
	}

	reqs, err := h.services.Requests.ListPending(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, h.views(reqs))
}

// GetRequest handles GET /requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, ok := h.loadVisibleRequest(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, h.view(req))
}

// GetRequestHistory handles GET /requests/:id/history
func (h *Handlers) GetRequestHistory(c *gin.Context) {
	req, ok := h.loadVisibleRequest(c)
	if !ok {
		return
	}

	history, err := h.services.Workflow.History(c.Request.Context(), req.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, history)
}

// ResubmitRequest handles POST /requests/:id/resubmit
func (h *Handlers) ResubmitRequest(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ResubmitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.logger, badRequest("body", "must be valid JSON"))
			return
		}
	}

	result, err := h.services.Workflow.Resubmit(c.Request.Context(), id, currentUser(c), req.Version)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// ListNotifications handles GET /notifications?unread=true
func (h *Handlers) ListNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

	items, err := h.services.Notifications.List(c.Request.Context(), currentUser(c).ID, unread)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}

// MarkNotificationRead handles PUT /notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Notifications.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "is_read": true})
}

// GetNotificationSettings handles GET /notification_settings
func (h *Handlers) GetNotificationSettings(c *gin.Context) {
	settings, err := h.services.Notifications.GetSettings(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, settings)
}

// UpdateNotificationSettings handles PUT /notification_settings
func (h *Handlers) UpdateNotificationSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, badRequest("body", "must be valid JSON"))
		return
	}

	settings := &entity.NotificationSettings{
		UserID:       currentUser(c).ID,
		EmailEnabled: req.EmailEnabled,
		SMSEnabled:   req.SMSEnabled,
		PushEnabled:  req.PushEnabled,
	}
	if err := h.services.Notifications.UpdateSettings(c.Request.Context(), settings); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, settings)
}

// ListAuditLogs handles GET /audit_logs?entity_type=request&entity_id=1
func (h *Handlers) ListAuditLogs(c *gin.Context) {
	entityType, entityID, ok := h.auditQuery(c)
	if !ok {
		return
	}

	entries, err := h.services.Audit.Query(c.Request.Context(), entityType, entityID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}

// ExportAuditLogs handles GET /audit_logs/export and returns an XLSX workbook
func (h *Handlers) ExportAuditLogs(c *gin.Context) {
	entityType, entityID, ok := h.auditQuery(c)
	if !ok {
		return
	}

	data, err := h.services.Audit.Export(c.Request.Context(), entityType, entityID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="audit_%s_%d.xlsx"`, entityType, entityID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ListBranches handles GET /branches
func (h *Handlers) ListBranches(c *gin.Context) {
	branches, err := h.services.Directory.ListBranches(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, branches)
}

// ListDepartments handles GET /branches/:id/departments
func (h *Handlers) ListDepartments(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	depts, err := h.services.Directory.ListDepartments(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, depts)
}

// CreateUser handles POST /users
func (h *Handlers) CreateUser(c *gin.Context) {
	admin, ok := requireRole(c, h.logger, entity.RoleAdmin, entity.RoleSuperAdmin)
	if !ok {
		return
	}

	var input service.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.logger, badRequest("body", "must be valid JSON"))
		return
	}
	input.ActorID = admin.ID

	user, err := h.services.Directory.CreateUser(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, user)
}

// loadVisibleRequest loads the :id request; officers only see their own
func (h *Handlers) loadVisibleRequest(c *gin.Context) (*entity.Request, bool) {
	id, ok := h.pathID(c)
	if !ok {
		return nil, false
	}

	req, err := h.services.Requests.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}

	user := currentUser(c)
	if user.HasRole(entity.RoleOfficer) && req.OfficerID != user.ID {
		respondError(c, h.logger, apperror.Unauthorized("request %d belongs to another officer", id))
		return nil, false
	}
	return req, true
}

func (h *Handlers) auditQuery(c *gin.Context) (string, int64, bool) {
	if _, ok := requireRole(c, h.logger, entity.RoleReviewer, entity.RoleApprover, entity.RoleAdmin, entity.RoleSuperAdmin); !ok {
		return "", 0, false
	}

	entityType := c.Query("entity_type")
	if entityType == "" {
		respondError(c, h.logger, badRequest("entity_type", "is required"))
		return "", 0, false
	}
	entityID, err := strconv.ParseInt(c.Query("entity_id"), 10, 64)
	if err != nil || entityID <= 0 {
		respondError(c, h.logger, badRequest("entity_id", "must be a positive integer"))
		return "", 0, false
	}
	return entityType, entityID, true
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, h.logger, badRequest("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handlers) view(req *entity.Request) RequestView {
	v := RequestView{Request: req}
	if h.services.Workflow != nil {
		v.RequiredRole, _ = h.services.Workflow.RequiredRole(req.Type, req.Status)
		v.Decisions = h.services.Workflow.AvailableDecisions(req.Type, req.Status)
	}
	return v
}

func (h *Handlers) views(reqs []*entity.Request) []RequestView {
	out := make([]RequestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, h.view(req))
	}
	return out
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
