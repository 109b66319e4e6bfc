package main

import (
	"net/http"
	"time"

	"school-library-backend/pkg/auth"
	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// createSchool registers a new school together with its admin account. The
// school starts pending and the admin stays unverified until a super admin
// approves the school.
func createSchool(c *gin.Context) {
	var request struct {
		Name          string `json:"name" binding:"required"`
		Address       string `json:"address" binding:"required"`
		Country       string `json:"country"`
		Description   string `json:"description"`
		AdminEmail    string `json:"admin_email" binding:"required,email"`
		AdminName     string `json:"admin_name" binding:"required"`
		AdminPassword string `json:"admin_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if request.Country == "" {
		request.Country = "France"
	}

	var existing models.School
	if err := db.Where("name = ?", request.Name).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A school with this name already exists"})
		return
	}

	hash, err := auth.HashPassword(request.AdminPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	admin := models.User{
		UserUid:      uuid.New().String(),
		Email:        request.AdminEmail,
		FullName:     request.AdminName,
		PasswordHash: hash,
		Role:         models.RoleSchoolAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create admin user"})
		return
	}

	school := models.School{
		SchoolUid:    uuid.New().String(),
		Name:         request.Name,
		Address:      request.Address,
		Country:      request.Country,
		Description:  request.Description,
		Status:       models.SchoolPending,
		AdminUserUid: admin.UserUid,
	}
	if err := db.Create(&school).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create school"})
		return
	}

	if err := db.Model(&models.User{}).Where("user_uid = ?", admin.UserUid).
		Update("school_uid", school.SchoolUid).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link admin to school"})
		return
	}

	c.JSON(http.StatusOK, schoolJSON(&school))
}

func getSchools(c *gin.Context) {
	user := currentUser(c)

	var schools []models.School
	query := db
	if user.Role != models.RoleSuperAdmin {
		query = query.Where("status = ?", models.SchoolApproved)
	}
	if err := query.Find(&schools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, len(schools))
	for i := range schools {
		items[i] = schoolJSON(&schools[i])
	}
	c.JSON(http.StatusOK, items)
}

// updateSchoolStatus approves or rejects a school. Approval also verifies
// the school's admin account.
func updateSchoolStatus(c *gin.Context) {
	user := currentUser(c)
	if user.Role != models.RoleSuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only super admins can change school status"})
		return
	}

	var request struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if request.Status != models.SchoolPending &&
		request.Status != models.SchoolApproved &&
		request.Status != models.SchoolRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown school status"})
		return
	}

	schoolUid := c.Param("schoolUid")
	var school models.School
	if err := db.Where("school_uid = ?", schoolUid).First(&school).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "School not found"})
		return
	}

	if err := db.Model(&models.School{}).Where("school_uid = ?", schoolUid).
		Update("status", request.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update school status"})
		return
	}

	if request.Status == models.SchoolApproved {
		if err := db.Model(&models.User{}).Where("user_uid = ?", school.AdminUserUid).
			Update("verified", true).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify school admin"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "School status updated"})
}

func schoolJSON(school *models.School) gin.H {
	return gin.H{
		"id":            school.SchoolUid,
		"name":          school.Name,
		"address":       school.Address,
		"country":       school.Country,
		"description":   school.Description,
		"status":        school.Status,
		"admin_user_id": school.AdminUserUid,
		"created_at":    school.CreatedAt.UTC().Format(time.RFC3339),
	}
}
