package record

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medisuite/portal-api/internal/handler"
	"github.com/medisuite/portal-api/internal/middleware"
	"github.com/medisuite/portal-api/internal/model"
	recordsvc "github.com/medisuite/portal-api/internal/service/record"
)

const maxUploadSize = 20 << 20 // 20 MiB

type Handler struct {
	service *recordsvc.Service
}

func NewHandler(service *recordsvc.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	rg.POST("", auth.RequireRole(model.RolePatient), h.Upload)
	rg.GET("", auth.RequireRole(model.RolePatient), h.ListMine)
}

func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("file is required"))
		return
	}
	if file.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("file too large"))
		return
	}

	patientID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user"))
		return
	}

	f, err := file.Open()
	if err != nil {
		c.Error(err)
		return
	}
	defer f.Close()

	record, err := h.service.Upload(c.Request.Context(), patientID, patientID, file.Filename, f)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(record))
}

func (h *Handler) ListMine(c *gin.Context) {
	patientID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user"))
		return
	}

	records, err := h.service.ListForPatient(c.Request.Context(), patientID, model.RecordKind(c.Query("kind")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}
