package api

import (
	"errors"
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"analyticaos/internal/domain" // Importing domain models
	"analyticaos/internal/invest"
	"analyticaos/internal/middleware"
	"analyticaos/internal/utils" // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// RegisterRequest is the sign-up payload
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// LoginRequest is the sign-in payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the session token
type AuthResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// isValidPassword checks the password length; bcrypt ignores bytes past 72
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// RegisterHandler creates a user with an empty wallet and requests a reserved account
func RegisterHandler(db *gorm.DB, rdb *redis.Client, svc *invest.Service, reserver invest.Reserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-72 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user := domain.User{
			Email:     strings.ToLower(strings.TrimSpace(req.Email)), // Lowercase to ensure uniqueness
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Password:  string(hash),
			Role:      domain.RoleUser,
		}
		err = db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var taken int64
			if err := tx.Model(&domain.User{}).Where("email = ?", user.Email).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return errEmailTaken
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			wallet := domain.Wallet{UserID: user.ID, AccountReference: "AOS-" + uuid.NewString()}
			if err := tx.Create(&wallet).Error; err != nil {
				return err
			}
			user.Wallet = &wallet
			return nil
		})
		if errors.Is(err, errEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithField("user_id", user.ID).Info("User registered")

		// A reserved account can be requested again later, so failure here is not fatal
		if reserver != nil {
			if wallet, err := svc.ReserveAccount(c.Request.Context(), reserver, user); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Warn("Reserved account request failed")
			} else {
				user.Wallet = wallet
			}
		}
		utils.InvalidateUser(c.Request.Context(), rdb, user.ID) // New row in the admin user list
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
	}
}

var errEmailTaken = errors.New("email taken")

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User
		if err := db.WithContext(c.Request.Context()).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
	}
}

// MeHandler returns the authenticated user with their wallet
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var user domain.User
		if err := db.WithContext(c.Request.Context()).Preload("Wallet").First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
