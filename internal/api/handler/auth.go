package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 72 * time.Hour

// GenerateToken signs a JWT binding a user id and display name.
func GenerateToken(userID, username string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
		"iss":      "swipedine-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and verifies a bearer token, returning the bound
// identity.
func ValidateToken(tokenString string, secret []byte) (userID, username string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}
	userID, _ = claims["user_id"].(string)
	username, _ = claims["username"].(string)
	if userID == "" {
		return "", "", fmt.Errorf("token missing user_id claim")
	}
	return userID, username, nil
}

type tokenRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username" binding:"required"`
}

// GetToken issues a JWT for a user; a missing user id gets a fresh UUID.
func (h *Handler) GetToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	if req.UserID == "" {
		req.UserID = uuid.New().String()
	}

	token, err := GenerateToken(req.UserID, req.Username, []byte(h.Config.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "userId": req.UserID})
}

// identityFromRequest authenticates the bearer token on an HTTP request.
func (h *Handler) identityFromRequest(c *gin.Context) (userID, username string, ok bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "", false
	}
	userID, username, err := ValidateToken(strings.TrimPrefix(authHeader, "Bearer "), []byte(h.Config.JWTSecret))
	if err != nil {
		return "", "", false
	}
	return userID, username, true
}
