package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"

	"school-library-backend/pkg/analytics"
	"school-library-backend/pkg/auth"
	"school-library-backend/pkg/database"
	"school-library-backend/pkg/loans"
	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func setupTest() {
	gin.SetMode(gin.TestMode)
	db = database.InitTest()
	recorder = analytics.NewRecorder(db)
	engine = loans.NewEngine(db, recorder)
}

func jsonContext(method, target string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func asUser(c *gin.Context, user *models.User) {
	c.Set(userContextKey, user)
}

func decodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	return response
}

func seedUser(role, schoolUid string) *models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		UserUid:      uuid.New().String(),
		Email:        uuid.New().String() + "@example.com",
		FullName:     "Test User",
		PasswordHash: hash,
		Role:         role,
		SchoolUid:    schoolUid,
	}
	db.Create(&user)
	return &user
}

func seedBook(format, schoolUid string, copies int) *models.Book {
	book := models.Book{
		BookUid:        uuid.New().String(),
		Title:          "Test Book",
		Format:         format,
		SchoolUid:      schoolUid,
		PublishedByUid: uuid.New().String(),
	}
	db.Create(&book)
	for i := 0; i < copies; i++ {
		db.Create(&models.BookCopy{
			CopyUid: uuid.New().String(),
			BookUid: book.BookUid,
			Barcode: fmt.Sprintf("%s-%03d", book.BookUid, i+1),
			Status:  models.CopyAvailable,
		})
	}
	return &book
}
