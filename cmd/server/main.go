package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"school-library-backend/pkg/analytics"
	"school-library-backend/pkg/auth"
	"school-library-backend/pkg/database"
	"school-library-backend/pkg/loans"
	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	db       *gorm.DB
	engine   *loans.Engine
	recorder *analytics.Recorder
)

func main() {
	log.Println("Starting school library service...")

	db = database.Init()
	recorder = analytics.NewRecorder(db)
	engine = loans.NewEngine(db, recorder)

	stop := make(chan struct{})
	defer close(stop)
	go recorder.Run(5*time.Second, stop)

	seedSuperAdmin()

	server := gin.Default()

	api := server.Group("/api/v1")
	api.POST("/auth/register", register)
	api.POST("/auth/login", login)
	api.GET("/auth/me", authRequired(), me)

	api.POST("/schools", createSchool)
	api.GET("/schools", authRequired(), getSchools)
	api.PUT("/schools/:schoolUid/status", authRequired(), updateSchoolStatus)

	api.POST("/books", authRequired(), createBook)
	api.GET("/books", getBooks)
	api.GET("/books/:bookUid", getBook)
	api.PUT("/books/:bookUid", authRequired(), updateBook)
	api.DELETE("/books/:bookUid", authRequired(), deleteBook)
	api.POST("/books/:bookUid/upload-file", authRequired(), uploadBookFile)
	api.POST("/books/:bookUid/download", authRequired(), downloadBook)
	api.GET("/books/:bookUid/file", authRequired(), serveBookFile)

	api.POST("/loans/request", authRequired(), requestLoan)
	api.POST("/loans", authRequired(), createLoan)
	api.GET("/loans", authRequired(), getLoans)
	api.GET("/loans/my", authRequired(), getMyLoans)
	api.PUT("/loans/:loanUid/status", authRequired(), updateLoanStatus)

	api.GET("/dashboard/stats", authRequired(), dashboardStats)

	server.GET("/manage/health", healthCheck)

	port := getEnv("PORT", "8080")
	log.Printf("School library service starting on :%s", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// seedSuperAdmin creates the bootstrap super admin account when the
// SUPER_ADMIN_EMAIL / SUPER_ADMIN_PASSWORD env vars are set.
func seedSuperAdmin() {
	email := os.Getenv("SUPER_ADMIN_EMAIL")
	password := os.Getenv("SUPER_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("Failed to hash super admin password: %v", err)
		return
	}
	admin := models.User{
		UserUid:      uuid.New().String(),
		Email:        email,
		FullName:     "Super Admin",
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		Verified:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Printf("Failed to create super admin: %v", err)
		return
	}
	log.Printf("Created super admin account: %s", email)
}

func healthCheck(ctx *gin.Context) {
	sqlDB, err := db.DB()
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "School library service is active",
	})
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
