package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kiosk/internal/database"
	"kiosk/internal/models"
)

const tokenTTL = 12 * time.Hour

// AuthMiddleware handles JWT authentication
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			c.Set("admin", claims["sub"])
		}
		c.Next()
	}
}

// IssueToken signs an admin token for user
func IssueToken(secret, user string, now time.Time) (string, int64, error) {
	expires := now.Add(tokenTTL).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   user,
		IssuedAt:  now.Unix(),
		ExpiresAt: expires,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", 0, err
	}
	return signed, expires, nil
}

func (s *Server) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.AdminPassword)) == 1
	if s.cfg.AdminUser == "" || !userOK || !passOK {
		s.logger.WithField("user", req.Username).Warn("admin login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, expires, err := IssueToken(s.cfg.JWTSecret, req.Username, s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: expires})
}

func (s *Server) handleListOrders(c *gin.Context) {
	status := c.Query("status")
	if status != "" {
		if _, err := models.ParseOrderStatus(status); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	orders, err := s.deps.Store.ListOrders(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]models.OrderView, len(orders))
	for i, o := range orders {
		views[i] = o.View()
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

// handleUpdateStatus moves every cup of an order to a new status and pushes
// the change to the kiosks.
func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req models.StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	number := database.BaseNumber(c.Param("number"))
	n, err := s.deps.Store.UpdateStatus(number, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": number,
		"status":       status,
		"cups":         n,
	}).Info("order status changed")
	s.publish(c.Request.Context(), models.StatusEvent{OrderNumber: number, Status: status})

	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "order_number": number, "updated": n})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.GetMetrics())
}
