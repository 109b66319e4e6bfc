package main

import (
	"net/http"
	"strings"
	"time"

	"school-library-backend/pkg/auth"
	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userContextKey = "currentUser"

// authRequired resolves the bearer token to a user and stores it on the
// context. Requests without a valid token get 401.
func authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}
		userUid, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		var user models.User
		if err := db.Where("user_uid = ?", userUid).First(&user).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		c.Set(userContextKey, &user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	return value.(*models.User)
}

func register(c *gin.Context) {
	var request struct {
		Email     string `json:"email" binding:"required,email"`
		FullName  string `json:"full_name" binding:"required"`
		Phone     string `json:"phone"`
		Password  string `json:"password" binding:"required"`
		Role      string `json:"role"`
		SchoolUid string `json:"school_id"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if request.Role == "" {
		request.Role = models.RoleUser
	}
	if !validRole(request.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	var existing models.User
	if err := db.Where("email = ?", request.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A user with this email already exists"})
		return
	}

	hash, err := auth.HashPassword(request.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	user := models.User{
		UserUid:      uuid.New().String(),
		Email:        request.Email,
		FullName:     request.FullName,
		Phone:        request.Phone,
		PasswordHash: hash,
		Role:         request.Role,
		SchoolUid:    request.SchoolUid,
	}
	if err := db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusOK, userJSON(&user))
}

func login(c *gin.Context) {
	var request struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	var user models.User
	if err := db.Where("email = ?", request.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
		return
	}
	if !auth.CheckPassword(request.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
		return
	}

	token, err := auth.GenerateToken(user.UserUid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         userJSON(&user),
	})
}

func me(c *gin.Context) {
	c.JSON(http.StatusOK, userJSON(currentUser(c)))
}

func userJSON(user *models.User) gin.H {
	return gin.H{
		"id":         user.UserUid,
		"email":      user.Email,
		"full_name":  user.FullName,
		"phone":      user.Phone,
		"role":       user.Role,
		"verified":   user.Verified,
		"school_id":  user.SchoolUid,
		"created_at": user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func validRole(role string) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleSchoolAdmin, models.RoleLibrarian,
		models.RoleTeacher, models.RoleUser:
		return true
	}
	return false
}
