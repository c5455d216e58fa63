package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/rtp-engine/internal/utils"
	"go.uber.org/zap"
)

// AuthHandler 认证处理器
// 运营方使用预共享密钥换取JWT令牌
type AuthHandler struct {
	jwtManager      *utils.JWTManager
	operatorKeyHash string
	tokenExpiry     time.Duration
	logger          *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(jwtManager *utils.JWTManager, operatorKeyHash string, tokenExpiry time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		jwtManager:      jwtManager,
		operatorKeyHash: operatorKeyHash,
		tokenExpiry:     tokenExpiry,
		logger:          logger,
	}
}

// TokenRequest 令牌申请请求
type TokenRequest struct {
	OperatorKey string `json:"operator_key" binding:"required"`
}

// TokenResponse 令牌响应
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// IssueToken 运营密钥换取访问令牌
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	ok, err := utils.VerifyKey(req.OperatorKey, h.operatorKeyHash)
	if err != nil || !ok {
		h.logger.Warn("运营密钥验证失败", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "AUTH_FAILED",
			Message: "认证失败",
		})
		return
	}

	token, err := h.jwtManager.GenerateToken("operator", uuid.New().String())
	if err != nil {
		h.logger.Error("生成令牌失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "TOKEN_GENERATION_FAILED",
			Message: "生成令牌失败",
		})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int64(h.tokenExpiry.Seconds()),
	})
}
