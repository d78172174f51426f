package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxel-engine/internal/auth"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/middleware"
)

var authLog = logging.For("auth")

// LoginRequest - имя и пароль оператора.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse - результат обмена пароля на токен.
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
}

func loginFailed(c *gin.Context, status int, msg string) {
	c.JSON(status, LoginResponse{Message: msg})
}

// handleLogin: POST /api/auth/token.
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		loginFailed(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	token, expires, err := rs.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		authLog.Warn("🔒 отказ во входе %q [%s] ip=%s", req.Username, middleware.RequestID(c), c.ClientIP())
		loginFailed(c, http.StatusUnauthorized, "Неверное имя пользователя или пароль")
	case err != nil:
		authLog.Error("выдача токена для %q: %v", req.Username, err)
		loginFailed(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	default:
		authLog.Info("🔑 токен выдан %q до %s", req.Username, expires.Format(time.RFC3339))
		c.JSON(http.StatusOK, LoginResponse{
			Success:   true,
			Token:     token,
			ExpiresAt: expires,
			Message:   "Успешный вход",
		})
	}
}
