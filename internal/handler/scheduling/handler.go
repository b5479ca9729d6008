package scheduling

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hfiles/clinic-api/internal/middleware"
	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/service/appointment"
	"github.com/hfiles/clinic-api/internal/service/scheduling"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
	"github.com/hfiles/clinic-api/pkg/httputil"
	"github.com/hfiles/clinic-api/pkg/validator"
)

// Handler exposes appointment booking and lifecycle endpoints.
type Handler struct {
	scheduler    *scheduling.Service
	appointments *appointment.Service
	validator    validator.Validator
}

func NewHandler(scheduler *scheduling.Service, appointments *appointment.Service) *Handler {
	return &Handler{
		scheduler:    scheduler,
		appointments: appointments,
		validator:    validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clinics := r.Group("/clinics/:clinicID")
	{
		clinics.GET("/appointments", h.ListAppointments)
		clinics.POST("/appointments", h.CreateAppointment)
		clinics.POST("/appointments/follow-up", h.CreateFollowUp)
		clinics.PATCH("/appointments/:id/status", h.UpdateStatus)
	}
	r.DELETE("/appointments/:id", h.DeleteAppointment)
	r.POST("/visits/:id/consents", h.IssueConsents)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	clinicID, err := clinicParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation(err.Error(), err))
		return
	}

	result, err := h.scheduler.CreateAppointment(c.Request.Context(), middleware.PrincipalFrom(c), clinicID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) CreateFollowUp(c *gin.Context) {
	clinicID, err := clinicParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation(err.Error(), err))
		return
	}

	result, err := h.scheduler.CreateFollowUp(c.Request.Context(), middleware.PrincipalFrom(c), clinicID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	clinicID, err := clinicParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	appointmentID, err := idParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation(err.Error(), err))
		return
	}

	result, err := h.scheduler.UpdateStatus(c.Request.Context(), middleware.PrincipalFrom(c), clinicID, appointmentID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	appointmentID, err := idParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.scheduler.Delete(c.Request.Context(), middleware.PrincipalFrom(c), appointmentID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": true})
}

func (h *Handler) IssueConsents(c *gin.Context) {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid visit ID", err))
		return
	}

	var req model.IssueConsentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation(err.Error(), err))
		return
	}

	links, err := h.scheduler.IssueConsentForms(c.Request.Context(), middleware.PrincipalFrom(c), visitID, req.ConsentFormTitles)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, gin.H{"consent_links": links})
}

func (h *Handler) ListAppointments(c *gin.Context) {
	clinicID, err := clinicParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if p := middleware.PrincipalFrom(c); p == nil || !p.CanAccessClinic(clinicID) {
		httputil.RespondWithError(c, apperrors.NewAuthorization("no access to clinic"))
		return
	}

	filters := &model.AppointmentFilters{}
	if s := c.Query("status"); s != "" {
		status := model.AppointmentStatus(s)
		if !status.Valid() {
			httputil.RespondWithError(c, apperrors.NewValidation("unknown status filter", nil))
			return
		}
		filters.Status = status
	}
	if d := c.Query("from"); d != "" {
		from, err := model.ParseDate(d)
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewValidation("invalid from date", err))
			return
		}
		filters.StartDate = from
	}
	if d := c.Query("to"); d != "" {
		to, err := model.ParseDate(d)
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewValidation("invalid to date", err))
			return
		}
		filters.EndDate = to
	}
	if err := c.ShouldBindQuery(&filters.Page); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid pagination", err))
		return
	}

	appointments, err := h.appointments.List(c.Request.Context(), clinicID, filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func clinicParam(c *gin.Context) (int64, error) {
	clinicID, err := strconv.ParseInt(c.Param("clinicID"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidation("invalid clinic ID", err)
	}
	return clinicID, nil
}

func idParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("invalid appointment ID", err)
	}
	return id, nil
}
