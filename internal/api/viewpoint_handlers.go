package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxel-engine/internal/export"
)

// ViewpointRequest - поза камеры; пустое тело сохраняет текущую камеру кадра
type ViewpointRequest struct {
	Camera *export.CameraPose `json:"camera,omitempty"`
}

func (rs *RestServer) handleListViewpoints(c *gin.Context) {
	views, err := rs.service.ListViewpoints(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Точки обзора", Data: views})
}

func (rs *RestServer) handleSaveViewpoint(c *gin.Context) {
	var req ViewpointRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Неверный формат запроса")
			return
		}
	}

	vp, err := rs.service.SaveViewpoint(c.Request.Context(), c.Param("name"), req.Camera)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Точка обзора сохранена", Data: vp})
}

func (rs *RestServer) handleApplyViewpoint(c *gin.Context) {
	params, err := rs.service.ApplyViewpoint(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Камера перемещена", Data: params})
}

func (rs *RestServer) handleDeleteViewpoint(c *gin.Context) {
	if err := rs.service.DeleteViewpoint(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Точка обзора удалена"})
}
