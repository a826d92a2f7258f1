package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/linkagejob"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// LinkageJobHandler handles linkage job API endpoints
type LinkageJobHandler struct {
	repo     *linkagejob.Repository
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewLinkageJobHandler creates a new linkage job handler
func NewLinkageJobHandler(repo *linkagejob.Repository, validate *validator.Validate, logger ectologger.Logger) *LinkageJobHandler {
	return &LinkageJobHandler{
		repo:     repo,
		validate: validate,
		logger:   logger,
	}
}

// Register registers linkage job routes
func (h *LinkageJobHandler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/result", h.Result)
}

// Create accepts a linkage spec and enqueues a pending job. The background
// runner picks it up; poll the job until it completes.
func (h *LinkageJobHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "LinkageJobHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var spec models.LinkageSpec
	if err := c.Bind(&spec); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(&spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid field %s: failed %s validation", verrs[0].Field(), verrs[0].Tag())
		}
		return BadRequest("invalid linkage spec")
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return BadRequest("invalid linkage spec")
	}

	fp, err := fingerprint.FromJSON(specJSON)
	if err != nil {
		return BadRequest("invalid linkage spec")
	}

	job := &models.LinkageJob{
		TenantID:        tenantID,
		RecordType:      spec.RecordType,
		SpecFingerprint: fp,
		Spec:            specJSON,
	}

	created, err := h.repo.Create(ctx, job)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to create linkage job")
		return err
	}

	return CreatedResponse(c, created)
}

// List returns the tenant's jobs without specs or results
func (h *LinkageJobHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "LinkageJobHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	limit := 0
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return BadRequest("invalid limit")
	}

	jobs, err := h.repo.List(ctx, tenantID, limit)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list linkage jobs")
		return err
	}

	return SuccessResponse(c, jobs)
}

// Get returns a job's status and metadata
func (h *LinkageJobHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "LinkageJobHandler.Get")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	job, err := h.repo.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	// The result can be large; fetch it from the result endpoint instead.
	job.Result = nil
	job.Spec = nil

	return SuccessResponse(c, job)
}

// Result returns the linked rows of a completed job
func (h *LinkageJobHandler) Result(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "LinkageJobHandler.Result")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	job, err := h.repo.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	if job.Status != models.JobStatusCompleted {
		return httperror.NewHTTPErrorf(http.StatusConflict, "linkage job %s is %s", job.ID, job.Status)
	}

	return c.JSONBlob(http.StatusOK, job.Result)
}
