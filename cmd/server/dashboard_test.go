package main

import (
	"net/http"
	"testing"

	"school-library-backend/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDashboardStatsSuperAdmin(t *testing.T) {
	setupTest()
	super := seedUser(models.RoleSuperAdmin, "")
	seedUser(models.RoleUser, "")
	seedBook(models.FormatPhysical, uuid.New().String(), 1)
	db.Create(&models.School{
		SchoolUid: uuid.New().String(), Name: "S", Address: "a",
		Status: models.SchoolPending, AdminUserUid: uuid.New().String(),
	})

	w, c := jsonContext("GET", "/api/v1/dashboard/stats", nil)
	asUser(c, super)
	dashboardStats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(w)
	assert.Equal(t, float64(1), stats["total_schools"])
	assert.Equal(t, float64(1), stats["pending_schools"])
	assert.Equal(t, float64(2), stats["total_users"])
	assert.Equal(t, float64(1), stats["total_books"])
	assert.Equal(t, float64(0), stats["total_loans"])
}

func TestDashboardStatsSchoolAdmin(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	admin := seedUser(models.RoleSchoolAdmin, school)
	user := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 2)
	seedBook(models.FormatPhysical, uuid.New().String(), 4)

	loan, err := engine.Reserve(book.BookUid, user, book.CreatedAt)
	assert.NoError(t, err)
	assert.NotNil(t, loan)

	w, c := jsonContext("GET", "/api/v1/dashboard/stats", nil)
	asUser(c, admin)
	dashboardStats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(w)
	assert.Equal(t, float64(1), stats["school_books"])
	assert.Equal(t, float64(1), stats["active_loans"])
	assert.Equal(t, float64(2), stats["total_copies"])
}

func TestDashboardStatsUser(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	user := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 1)

	_, _, err := engine.Request(book.BookUid, user)
	assert.NoError(t, err)

	w, c := jsonContext("GET", "/api/v1/dashboard/stats", nil)
	asUser(c, user)
	dashboardStats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(w)
	assert.Equal(t, float64(1), stats["my_loans"])
	// Pending requests are not counted as active borrowings.
	assert.Equal(t, float64(0), stats["active_loans"])
}
