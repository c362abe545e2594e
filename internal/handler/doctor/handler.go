package doctor

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/handler"
	"github.com/medisuite/portal-api/internal/middleware"
	"github.com/medisuite/portal-api/internal/model"
	doctorsvc "github.com/medisuite/portal-api/internal/service/doctor"
	"github.com/medisuite/portal-api/internal/service/schedule"
	"github.com/medisuite/portal-api/pkg/validator"
)

type Handler struct {
	service  *doctorsvc.Service
	schedule *schedule.Service
}

func NewHandler(service *doctorsvc.Service, schedule *schedule.Service) *Handler {
	return &Handler{service: service, schedule: schedule}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/availability", h.Availability)
	rg.POST("", auth.RequireRole(model.RoleAdmin), h.Create)
	rg.PUT("/:id/schedule", auth.RequireRole(model.RoleDoctor, model.RoleAdmin), h.UpdateSchedule)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctor, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(doctor))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	doctor, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

func (h *Handler) List(c *gin.Context) {
	doctors, err := h.service.List(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

// Availability returns the classified slot catalog for one date.
func (h *Handler) Availability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}
	date, err := time.Parse(model.DateOnly, c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("date must be formatted YYYY-MM-DD"))
		return
	}

	day, err := h.schedule.DayAvailability(c.Request.Context(), id, date)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(day))
}

type updateScheduleRequest struct {
	WorkingDays []string `json:"working_days" binding:"required,min=1"`
	StartTime   string   `json:"start_time" binding:"required"`
	EndTime     string   `json:"end_time" binding:"required"`
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctor, err := h.service.UpdateSchedule(c.Request.Context(), id, req.WorkingDays, req.StartTime, req.EndTime)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}
