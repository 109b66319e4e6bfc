package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"school-library-backend/pkg/analytics"
	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const uploadsDir = "uploads/books"

type bookPayload struct {
	Title          string   `json:"title" binding:"required"`
	Authors        []string `json:"authors" binding:"required"`
	ISBN           string   `json:"isbn"`
	Description    string   `json:"description"`
	Categories     []string `json:"categories"`
	Language       string   `json:"language"`
	Format         string   `json:"format"`
	Price          float64  `json:"price"`
	CoverImage     string   `json:"cover_image"`
	SchoolUid      string   `json:"school_id"`
	PhysicalCopies int      `json:"physical_copies"`
}

func createBook(c *gin.Context) {
	user := currentUser(c)
	if !canPublishBooks(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to create books"})
		return
	}

	var request bookPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if request.Format == "" {
		request.Format = models.FormatPhysical
	}
	if !validFormat(request.Format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown book format"})
		return
	}
	if request.Language == "" {
		request.Language = "fr"
	}

	// The publisher's own school always wins over the payload.
	if user.SchoolUid != "" {
		request.SchoolUid = user.SchoolUid
	}
	if request.SchoolUid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "school_id is required"})
		return
	}

	book := models.Book{
		BookUid:        uuid.New().String(),
		Title:          request.Title,
		Authors:        toJSONList(request.Authors),
		ISBN:           request.ISBN,
		Description:    request.Description,
		Categories:     toJSONList(request.Categories),
		Language:       request.Language,
		Format:         request.Format,
		Price:          request.Price,
		CoverImage:     request.CoverImage,
		SchoolUid:      request.SchoolUid,
		PublishedByUid: user.UserUid,
	}
	if err := db.Create(&book).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create book"})
		return
	}

	if request.PhysicalCopies > 0 &&
		(book.Format == models.FormatPhysical || book.Format == models.FormatBoth) {
		for i := 0; i < request.PhysicalCopies; i++ {
			copyRecord := models.BookCopy{
				CopyUid: uuid.New().String(),
				BookUid: book.BookUid,
				Barcode: fmt.Sprintf("%s-%03d", book.BookUid, i+1),
				Status:  models.CopyAvailable,
			}
			if err := db.Create(&copyRecord).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create book copies"})
				return
			}
		}
	}

	c.JSON(http.StatusOK, bookJSON(&book))
}

func getBooks(c *gin.Context) {
	query := db.Model(&models.Book{})

	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where(
			"title LIKE ? OR CAST(authors AS TEXT) LIKE ? OR description LIKE ?",
			pattern, pattern, pattern)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("CAST(categories AS TEXT) LIKE ?", "%"+category+"%")
	}
	if format := c.Query("format"); format != "" {
		query = query.Where("format = ?", format)
	}
	if schoolUid := c.Query("school_id"); schoolUid != "" {
		query = query.Where("school_uid = ?", schoolUid)
	}

	var books []models.Book
	if err := query.Find(&books).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, len(books))
	for i := range books {
		items[i] = bookJSON(&books[i])
	}
	c.JSON(http.StatusOK, items)
}

func getBook(c *gin.Context) {
	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	c.JSON(http.StatusOK, bookJSON(&book))
}

func updateBook(c *gin.Context) {
	user := currentUser(c)

	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	if !canEditBook(user, &book) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to modify this book"})
		return
	}

	var request bookPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if request.Format != "" && !validFormat(request.Format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown book format"})
		return
	}

	updates := map[string]interface{}{
		"title":       request.Title,
		"authors":     toJSONList(request.Authors),
		"isbn":        request.ISBN,
		"description": request.Description,
		"categories":  toJSONList(request.Categories),
		"price":       request.Price,
		"cover_image": request.CoverImage,
	}
	if request.Format != "" {
		updates["format"] = request.Format
	}
	if request.Language != "" {
		updates["language"] = request.Language
	}
	if err := db.Model(&models.Book{}).Where("book_uid = ?", book.BookUid).
		Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update book"})
		return
	}

	if err := db.Where("book_uid = ?", book.BookUid).First(&book).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bookJSON(&book))
}

// deleteBook removes the book together with its copies and loans. This is an
// administrative cleanup, not a loan-lifecycle event.
func deleteBook(c *gin.Context) {
	user := currentUser(c)

	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	if !canEditBook(user, &book) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to delete this book"})
		return
	}

	if err := db.Where("book_uid = ?", book.BookUid).Delete(&models.BookCopy{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete book copies"})
		return
	}
	if err := db.Where("book_uid = ?", book.BookUid).Delete(&models.Loan{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete book loans"})
		return
	}
	if err := db.Where("book_uid = ?", book.BookUid).Delete(&models.Book{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete book"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Book deleted"})
}

func uploadBookFile(c *gin.Context) {
	user := currentUser(c)

	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	if !canEditBook(user, &book) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to modify this book"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" && ext != ".epub" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file format. Use PDF or EPUB."})
		return
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare uploads directory"})
		return
	}
	destination := filepath.Join(uploadsDir, fmt.Sprintf("%s_%s", book.BookUid, filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, destination); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	if err := db.Model(&models.Book{}).Where("book_uid = ?", book.BookUid).
		Update("file_path", destination).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update book"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "File uploaded", "file_path": destination})
}

// downloadBook checks the digital channel and hands back a download link.
// The download record is analytics only and must never fail the request.
func downloadBook(c *gin.Context) {
	user := currentUser(c)

	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	if book.Format != models.FormatDigital && book.Format != models.FormatBoth {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This book has no digital format"})
		return
	}
	if book.FilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No file available for this book"})
		return
	}
	info, err := os.Stat(book.FilePath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found on server"})
		return
	}

	if recorder != nil {
		recorder.Record(analytics.KindDownload, book.BookUid, user.UserUid, "", book.Title)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Book ready for download",
		"download_url": fmt.Sprintf("/api/v1/books/%s/file", book.BookUid),
		"book_title":   book.Title,
		"file_size":    info.Size(),
	})
}

func serveBookFile(c *gin.Context) {
	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	if book.FilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No file available"})
		return
	}
	if _, err := os.Stat(book.FilePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	ext := strings.ToLower(filepath.Ext(book.FilePath))
	mediaType := "application/epub+zip"
	if ext == ".pdf" {
		mediaType = "application/pdf"
	}
	c.Header("Content-Type", mediaType)
	c.FileAttachment(book.FilePath, book.Title+ext)
}

func canPublishBooks(user *models.User) bool {
	switch user.Role {
	case models.RoleSchoolAdmin, models.RoleLibrarian, models.RoleTeacher:
		return true
	}
	return false
}

func canEditBook(user *models.User, book *models.Book) bool {
	if book.PublishedByUid == user.UserUid {
		return true
	}
	return user.Role == models.RoleSchoolAdmin || user.Role == models.RoleLibrarian
}

func validFormat(format string) bool {
	switch format {
	case models.FormatPhysical, models.FormatDigital, models.FormatBoth:
		return true
	}
	return false
}

func bookJSON(book *models.Book) gin.H {
	return gin.H{
		"id":           book.BookUid,
		"title":        book.Title,
		"authors":      fromJSONList(book.Authors),
		"isbn":         book.ISBN,
		"description":  book.Description,
		"categories":   fromJSONList(book.Categories),
		"language":     book.Language,
		"format":       book.Format,
		"price":        book.Price,
		"cover_image":  book.CoverImage,
		"file_path":    book.FilePath,
		"school_id":    book.SchoolUid,
		"published_by": book.PublishedByUid,
		"created_at":   book.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toJSONList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return datatypes.JSON(raw)
}

func fromJSONList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return []string{}
	}
	return values
}
