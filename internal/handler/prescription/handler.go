package prescription

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/handler"
	"github.com/medisuite/portal-api/internal/middleware"
	"github.com/medisuite/portal-api/internal/model"
	doctorsvc "github.com/medisuite/portal-api/internal/service/doctor"
	rxsvc "github.com/medisuite/portal-api/internal/service/prescription"
	"github.com/medisuite/portal-api/pkg/validator"
)

type Handler struct {
	service *rxsvc.Service
	doctors *doctorsvc.Service
}

func NewHandler(service *rxsvc.Service, doctors *doctorsvc.Service) *Handler {
	return &Handler{service: service, doctors: doctors}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	rg.POST("", auth.RequireRole(model.RoleDoctor), h.Create)
	rg.GET("/:id", h.Get)
	rg.GET("", auth.RequireRole(model.RolePatient), h.ListMine)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	userID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user"))
		return
	}
	doctor, err := h.doctors.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	prescription, err := h.service.Create(c.Request.Context(), doctor.ID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(prescription))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid prescription ID"))
		return
	}

	prescription, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(prescription))
}

func (h *Handler) ListMine(c *gin.Context) {
	patientID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user"))
		return
	}

	prescriptions, err := h.service.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(prescriptions))
}
