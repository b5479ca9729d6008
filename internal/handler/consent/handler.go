package consent

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hfiles/clinic-api/internal/service/consent"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
	"github.com/hfiles/clinic-api/pkg/httputil"
)

// Handler exposes consent form verification and document endpoints.
type Handler struct {
	service *consent.Service
}

func NewHandler(service *consent.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/consents/:id/verify", h.Verify)
	r.POST("/consents/:id/document", h.AttachDocument)
	r.GET("/visits/:id/consents", h.ListByVisit)
}

type verifyRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) Verify(c *gin.Context) {
	issuanceID, err := idParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid request body", err))
		return
	}

	if err := h.service.Verify(c.Request.Context(), issuanceID, req.Title); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"verified": true})
}

func (h *Handler) AttachDocument(c *gin.Context) {
	issuanceID, err := idParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	title := c.PostForm("title")
	if title == "" {
		httputil.RespondWithError(c, apperrors.NewValidation("title is required", nil))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("file is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}
	defer file.Close()

	url, err := h.service.AttachDocument(c.Request.Context(), issuanceID, title, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"document_url": url})
}

func (h *Handler) ListByVisit(c *gin.Context) {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("invalid visit ID", err))
		return
	}

	issuances, err := h.service.ListByVisit(c.Request.Context(), visitID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, issuances)
}

func idParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("invalid consent ID", err)
	}
	return id, nil
}
