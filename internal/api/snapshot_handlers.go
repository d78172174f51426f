package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// SnapshotRequest - необязательное имя снимка
type SnapshotRequest struct {
	Name string `json:"name"`
}

// parseSnapshotLayout принимает world|chunk_grid|octree
func parseSnapshotLayout(s string) (export.Layout, error) {
	if s == "world" {
		return export.LayoutChunkGrid, nil
	}
	layout, err := export.ParseLayout(s)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, block.ErrRange)
	}
	return layout, nil
}

func (rs *RestServer) handleSaveSnapshot(c *gin.Context) {
	layout, err := parseSnapshotLayout(c.Param("layout"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req SnapshotRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Неверный формат запроса")
			return
		}
	}

	meta, err := rs.service.SaveSnapshot(req.Name, layout)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Снимок сохранён", Data: meta})
}

func (rs *RestServer) handleListSnapshots(c *gin.Context) {
	metas, err := rs.service.ListSnapshots()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Снимков: %d", len(metas)),
		Data:    metas,
	})
}

func (rs *RestServer) handleGetSnapshot(c *gin.Context) {
	meta, err := rs.service.GetSnapshot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимок найден", Data: meta})
}

func (rs *RestServer) handleDeleteSnapshot(c *gin.Context) {
	if err := rs.service.DeleteSnapshot(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимок удалён"})
}

func (rs *RestServer) handleRestoreSnapshot(c *gin.Context) {
	meta, err := rs.service.RestoreSnapshot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимок восстановлен", Data: meta})
}
