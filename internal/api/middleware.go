package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxel-engine/internal/app"
	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/octree"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// jwtMiddleware проверяет JWT токен в заголовке Authorization
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortJSON(c, http.StatusUnauthorized, "Отсутствует токен авторизации")
			return
		}

		// Формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortJSON(c, http.StatusUnauthorized, "Неверный формат токена")
			return
		}

		claims, err := rs.auth.Validate(parts[1])
		if err != nil {
			logging.Debug("JWT отклонён: %v", err)
			abortJSON(c, http.StatusUnauthorized, "Недействительный токен")
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, GenericResponse{Success: false, Message: message})
}

// statusFor сопоставляет ошибки домена с HTTP-статусами
func statusFor(err error) int {
	switch {
	case errors.Is(err, block.ErrRange),
		errors.Is(err, block.ErrOutOfBounds),
		errors.Is(err, storage.ErrInvalidViewpoint):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrSnapshotNotFound),
		errors.Is(err, storage.ErrViewpointNotFound),
		errors.Is(err, ErrWebhookNotFound):
		return http.StatusNotFound
	case errors.Is(err, block.ErrInvalidState):
		// В том числе world.ErrNotPopulated
		return http.StatusConflict
	case errors.Is(err, octree.ErrCorruptArena),
		errors.Is(err, export.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, octree.ErrArenaFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, app.ErrStorageDisabled),
		errors.Is(err, storage.ErrStorageClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку в формате GenericResponse
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error("❌ %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: message})
}
