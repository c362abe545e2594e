package labtest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/handler"
	"github.com/medisuite/portal-api/internal/middleware"
	"github.com/medisuite/portal-api/internal/model"
	labsvc "github.com/medisuite/portal-api/internal/service/labtest"
	"github.com/medisuite/portal-api/pkg/validator"
)

const maxReportSize = 20 << 20 // 20 MiB

type Handler struct {
	service *labsvc.Service
}

func NewHandler(service *labsvc.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	rg.GET("", h.ListTests)
	rg.GET("/:id/availability", h.Availability)
	rg.POST("/bookings", auth.RequireRole(model.RolePatient), h.Book)
	rg.GET("/bookings", auth.RequireRole(model.RolePatient), h.ListBookings)
	rg.POST("/bookings/:id/cancel", h.CancelBooking)
	rg.POST("/bookings/:id/complete", auth.RequireRole(model.RoleAdmin), h.Complete)
}

func (h *Handler) ListTests(c *gin.Context) {
	tests, err := h.service.ListTests(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(tests))
}

func (h *Handler) Availability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid test ID"))
		return
	}
	date, err := time.Parse(model.DateOnly, c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("date must be formatted YYYY-MM-DD"))
		return
	}

	day, err := h.service.DayAvailability(c.Request.Context(), id, date)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(day))
}

func (h *Handler) Book(c *gin.Context) {
	var req model.CreateLabBookingRequest
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

	booking, err := h.service.Book(c.Request.Context(), patientID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(booking))
}

func (h *Handler) ListBookings(c *gin.Context) {
	patientID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user"))
		return
	}

	bookings, err := h.service.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bookings))
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid booking ID"))
		return
	}

	booking, err := h.service.CancelBooking(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(booking))
}

// Complete uploads the generated report and closes the booking.
func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid booking ID"))
		return
	}

	file, err := c.FormFile("report")
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("report file is required"))
		return
	}
	if file.Size > maxReportSize {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("report file too large"))
		return
	}

	f, err := file.Open()
	if err != nil {
		c.Error(err)
		return
	}
	defer f.Close()

	booking, err := h.service.Complete(c.Request.Context(), id, file.Filename, f)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(booking))
}
