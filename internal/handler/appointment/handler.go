package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/handler"
	"github.com/medisuite/portal-api/internal/middleware"
	"github.com/medisuite/portal-api/internal/model"
	apptsvc "github.com/medisuite/portal-api/internal/service/appointment"
	"github.com/medisuite/portal-api/pkg/validator"
)

type Handler struct {
	service *apptsvc.Service
}

func NewHandler(service *apptsvc.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	rg.POST("", auth.RequireRole(model.RolePatient), h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/approve", auth.RequireRole(model.RoleDoctor, model.RoleAdmin), h.Approve)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/seen", auth.RequireRole(model.RoleDoctor), h.MarkSeen)
	rg.POST("/:id/reschedule/accept", auth.RequireRole(model.RolePatient), h.AcceptReschedule)
	rg.POST("/:id/reschedule/reject", auth.RequireRole(model.RolePatient), h.RejectReschedule)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	patientID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user"))
		return
	}

	appointment, err := h.service.Book(c.Request.Context(), patientID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appointment))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.AppointmentFilters{}

	if id := c.Query("doctor_id"); id != "" {
		doctorID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
			return
		}
		filters.DoctorID = doctorID
	}
	if id := c.Query("patient_id"); id != "" {
		patientID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
			return
		}
		filters.PatientID = patientID
	}
	if status := c.Query("status"); status != "" {
		filters.Status = model.AppointmentStatus(status)
	}
	if from := c.Query("from"); from != "" {
		start, err := time.Parse(model.DateOnly, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("from must be formatted YYYY-MM-DD"))
			return
		}
		filters.StartDate = start
	}
	if to := c.Query("to"); to != "" {
		end, err := time.Parse(model.DateOnly, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("to must be formatted YYYY-MM-DD"))
			return
		}
		filters.EndDate = end
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

func (h *Handler) MarkSeen(c *gin.Context) {
	h.transition(c, h.service.MarkSeen)
}

func (h *Handler) AcceptReschedule(c *gin.Context) {
	h.transition(c, h.service.AcceptReschedule)
}

func (h *Handler) RejectReschedule(c *gin.Context) {
	h.transition(c, h.service.RejectReschedule)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appointment, err := h.service.Cancel(c.Request.Context(), id, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, id uuid.UUID) (*model.Appointment, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	appointment, err := op(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}
