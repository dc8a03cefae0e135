package handler

import (
	"errors"

	"github.com/nexus/backend/internal/infrastructure/auth"
	"github.com/nexus/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles the single-admin authentication endpoints
type AuthHandler struct {
	BaseHandler
	credentials *auth.CredentialChecker
	jwt         *auth.JWTService
	blacklist   auth.TokenBlacklist
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	credentials *auth.CredentialChecker,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	logger *zap.Logger,
) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		credentials: credentials,
		jwt:         jwtService,
		blacklist:   blacklist,
		logger:      logger,
	}
}

// Login checks the admin credentials and issues a token pair
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.credentials.Check(req.Username, req.Password); err != nil {
		h.logger.Warn("Login rejected",
			zap.String("username", req.Username),
			zap.String("ip", c.ClientIP()))
		h.Unauthorized(c, "Invalid username or password")
		return
	}

	pair, err := h.jwt.GenerateTokenPair(req.Username)
	if err != nil {
		h.logger.Error("Token generation failed", zap.Error(err))
		h.InternalError(c, "Failed to issue tokens")
		return
	}

	h.Success(c, LoginResponse{
		Token:    toTokenResponse(pair),
		Username: req.Username,
	})
}

// RefreshToken exchanges a refresh token for a new pair
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	pair, err := h.jwt.RefreshTokenPair(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrMaxRefreshExceeded) {
			h.Unauthorized(c, "Session expired, please log in again")
			return
		}
		h.Unauthorized(c, "Invalid refresh token")
		return
	}

	h.Success(c, RefreshTokenResponse{Token: toTokenResponse(pair)})
}

// Logout revokes the current access token
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	if h.blacklist != nil && claims.ID != "" {
		ttl := claims.GetRemainingTTL()
		if ttl > 0 {
			if err := h.blacklist.AddToBlacklist(c.Request.Context(), claims.ID, ttl); err != nil {
				h.logger.Error("Failed to revoke token", zap.Error(err))
				h.InternalError(c, "Logout failed")
				return
			}
		}
	}

	h.Success(c, LogoutResponse{Message: "Logged out successfully"})
}

func toTokenResponse(pair *auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
	}
}
