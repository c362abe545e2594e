package leave

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/handler"
	"github.com/medisuite/portal-api/internal/middleware"
	"github.com/medisuite/portal-api/internal/model"
	doctorsvc "github.com/medisuite/portal-api/internal/service/doctor"
	leavesvc "github.com/medisuite/portal-api/internal/service/leave"
	"github.com/medisuite/portal-api/pkg/validator"
)

type Handler struct {
	service *leavesvc.Service
	doctors *doctorsvc.Service
}

func NewHandler(service *leavesvc.Service, doctors *doctorsvc.Service) *Handler {
	return &Handler{service: service, doctors: doctors}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	doctorOnly := auth.RequireRole(model.RoleDoctor)
	rg.POST("", doctorOnly, h.Create)
	rg.GET("", doctorOnly, h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/cancel", doctorOnly, h.Cancel)
}

// Create declares a leave. With ?dry_run=true it only reports the
// appointments the leave would affect, making no changes.
func (h *Handler) Create(c *gin.Context) {
	var req model.CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctor, err := h.callerDoctor(c)
	if err != nil {
		c.Error(err)
		return
	}

	if c.Query("dry_run") == "true" {
		result, err := h.service.Preview(c.Request.Context(), doctor.ID, req.StartDate, req.EndDate)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
		return
	}

	leave, result, err := h.service.Create(c.Request.Context(), doctor.ID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"leave":   leave,
		"cascade": result,
	}))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid leave ID"))
		return
	}

	leave, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(leave))
}

func (h *Handler) List(c *gin.Context) {
	doctor, err := h.callerDoctor(c)
	if err != nil {
		c.Error(err)
		return
	}

	leaves, err := h.service.ListForDoctor(c.Request.Context(), doctor.ID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(leaves))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid leave ID"))
		return
	}

	leave, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(leave))
}

func (h *Handler) callerDoctor(c *gin.Context) (*model.Doctor, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return nil, err
	}
	return h.doctors.GetByUserID(c.Request.Context(), userID)
}
