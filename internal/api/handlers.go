package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/crossgrid/orchestrator/internal/domain"
)

type createRequestBody struct {
	EventType string          `json:"eventType" binding:"required"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

func (a *Api) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventType, err := domain.ParseEventType(body.EventType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := a.orch.Create(c.Request.Context(), eventType, body.Payload)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toView(req))
}

func (a *Api) GetRequest(c *gin.Context) {
	id, ok := a.requestID(c)
	if !ok {
		return
	}
	req, err := a.orch.Get(c.Request.Context(), id)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(req))
}

func (a *Api) ListRequests(c *gin.Context) {
	if cid := c.Query("correlation_id"); cid != "" {
		req, err := a.orch.GetByCorrelation(c.Request.Context(), cid)
		if err != nil {
			a.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, []requestView{toView(req)})
		return
	}

	var eventType domain.EventType
	if et := c.Query("event_type"); et != "" {
		parsed, err := domain.ParseEventType(et)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		eventType = parsed
	}

	statuses := []domain.Status{
		domain.StatusPending, domain.StatusValidated, domain.StatusDeploying,
		domain.StatusAwaitingApproval, domain.StatusApproved,
		domain.StatusRejected, domain.StatusCompleted, domain.StatusFailed,
	}
	if st := c.Query("status"); st != "" {
		statuses = []domain.Status{domain.Status(st)}
	}

	reqs, err := a.orch.List(c.Request.Context(), eventType, statuses, 200)
	if err != nil {
		a.renderError(c, err)
		return
	}
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, toView(req))
	}
	c.JSON(http.StatusOK, views)
}

func (a *Api) ValidateRequest(c *gin.Context) {
	id, ok := a.requestID(c)
	if !ok {
		return
	}

	result, err := a.orch.Validate(c.Request.Context(), id)
	if err != nil && result == nil {
		a.renderError(c, err)
		return
	}
	if err != nil {
		// Duplicate: the result is still reported alongside the conflict.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "validation": result})
		return
	}
	if !result.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"validation": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"validation": result})
}

type deployRequestBody struct {
	Target string `json:"target" binding:"required"`
}

func (a *Api) DeployRequest(c *gin.Context) {
	id, ok := a.requestID(c)
	if !ok {
		return
	}

	var body deployRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.orch.Deploy(c.Request.Context(), id, body.Target, a.targets)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *Api) ReconcileRequest(c *gin.Context) {
	id, ok := a.requestID(c)
	if !ok {
		return
	}

	req, err := a.orch.Reconcile(c.Request.Context(), id, a.targets)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(req))
}

func (a *Api) PreviewRequest(c *gin.Context) {
	id, ok := a.requestID(c)
	if !ok {
		return
	}

	payload, contentType, err := a.orch.Preview(c.Request.Context(), id, c.Param("target"))
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, payload)
}

func (a *Api) Sweep(c *gin.Context) {
	eventType, err := domain.ParseEventType(c.Param("eventType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.orch.SweepPending(c.Request.Context(), eventType, a.targets)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *Api) Ingest(c *gin.Context) {
	eventType, err := domain.ParseEventType(c.Param("eventType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.ingestor.Sync(c.Request.Context(), eventType, a.source)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type statusPushBody struct {
	CorrelationID string `json:"correlationId" binding:"required"`
	Status        string `json:"status" binding:"required"`
}

func (a *Api) StatusPush(c *gin.Context) {
	var body statusPushBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := a.orch.ApplyStatusPush(c.Request.Context(), body.CorrelationID, body.Status)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(req))
}

func (a *Api) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *Api) requestID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id must be an integer"})
		return 0, false
	}
	return id, true
}

// renderError maps the domain taxonomy onto HTTP statuses.
func (a *Api) renderError(c *gin.Context, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": domainErr.Message})
		case domain.ErrCodeAlreadyDeployed, domain.ErrCodeDuplicateRequest, domain.ErrCodeInvalidTransition:
			c.JSON(http.StatusConflict, gin.H{"error": domainErr.Message})
		case domain.ErrCodeUnknownTarget, domain.ErrCodeUnknownEventType, domain.ErrCodeValidationFailed:
			c.JSON(http.StatusBadRequest, gin.H{"error": domainErr.Message})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": domainErr.Message})
		}
		return
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Error(), "errors": validationErr.Errors})
		return
	}

	var dispatchErr *domain.DispatchError
	if errors.As(err, &dispatchErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": dispatchErr.Error(), "retryable": dispatchErr.Retryable})
		return
	}

	var reconErr *domain.ReconciliationError
	if errors.As(err, &reconErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": reconErr.Error(), "retryable": true})
		return
	}

	a.logger.Error("internal error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
