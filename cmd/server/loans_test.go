package main

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestLoanEndpoint(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	user := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 2)

	w, c := jsonContext("POST", "/api/v1/loans/request", gin.H{"book_id": book.BookUid})
	asUser(c, user)
	requestLoan(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(w)
	assert.Equal(t, models.LoanPendingApproval, response["status"])
	assert.Equal(t, "Test Book", response["book_title"])
	assert.NotEmpty(t, response["loan_id"])
}

func TestRequestLoanMissingBookID(t *testing.T) {
	setupTest()
	user := seedUser(models.RoleUser, "")

	w, c := jsonContext("POST", "/api/v1/loans/request", gin.H{})
	asUser(c, user)
	requestLoan(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestLoanBookNotFoundEndpoint(t *testing.T) {
	setupTest()
	user := seedUser(models.RoleUser, "")

	w, c := jsonContext("POST", "/api/v1/loans/request", gin.H{"book_id": uuid.New().String()})
	asUser(c, user)
	requestLoan(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestLoanDigitalOnlyEndpoint(t *testing.T) {
	setupTest()
	user := seedUser(models.RoleUser, "")
	book := seedBook(models.FormatDigital, uuid.New().String(), 0)

	w, c := jsonContext("POST", "/api/v1/loans/request", gin.H{"book_id": book.BookUid})
	asUser(c, user)
	requestLoan(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestLoanNoCopiesEndpoint(t *testing.T) {
	setupTest()
	user := seedUser(models.RoleUser, "")
	book := seedBook(models.FormatPhysical, uuid.New().String(), 0)

	w, c := jsonContext("POST", "/api/v1/loans/request", gin.H{"book_id": book.BookUid})
	asUser(c, user)
	requestLoan(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRequestLoanDuplicateEndpoint(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	user := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 2)

	_, c := jsonContext("POST", "/api/v1/loans/request", gin.H{"book_id": book.BookUid})
	asUser(c, user)
	requestLoan(c)

	w, c := jsonContext("POST", "/api/v1/loans/request", gin.H{"book_id": book.BookUid})
	asUser(c, user)
	requestLoan(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	admin := seedUser(models.RoleSchoolAdmin, school)
	user := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 2)

	w, c := jsonContext("POST", "/api/v1/loans/request", gin.H{"book_id": book.BookUid})
	asUser(c, user)
	requestLoan(c)
	assert.Equal(t, http.StatusOK, w.Code)
	loanUid, _ := decodeBody(w)["loan_id"].(string)

	updateStatus := func(actor *models.User, status string) int {
		w, c := jsonContext("PUT", "/api/v1/loans/"+loanUid+"/status", gin.H{"status": status})
		c.Params = gin.Params{gin.Param{Key: "loanUid", Value: loanUid}}
		asUser(c, actor)
		updateLoanStatus(c)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, updateStatus(admin, models.LoanApproved))
	assert.Equal(t, http.StatusOK, updateStatus(admin, models.LoanBorrowed))
	assert.Equal(t, http.StatusOK, updateStatus(user, models.LoanReturned))
	assert.Equal(t, http.StatusOK, updateStatus(admin, models.LoanCompleted))

	// Terminal status: everything else is rejected.
	assert.Equal(t, http.StatusBadRequest, updateStatus(admin, models.LoanBorrowed))
}

func TestUpdateLoanStatusForbiddenEndpoint(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	user := seedUser(models.RoleUser, school)
	stranger := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 1)

	loan, _, err := engine.Request(book.BookUid, user)
	assert.NoError(t, err)

	w, c := jsonContext("PUT", "/api/v1/loans/"+loan.LoanUid+"/status", gin.H{"status": models.LoanApproved})
	c.Params = gin.Params{gin.Param{Key: "loanUid", Value: loan.LoanUid}}
	asUser(c, stranger)
	updateLoanStatus(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateLoanStatusNotFoundEndpoint(t *testing.T) {
	setupTest()
	admin := seedUser(models.RoleSuperAdmin, "")

	w, c := jsonContext("PUT", "/api/v1/loans/missing/status", gin.H{"status": models.LoanApproved})
	c.Params = gin.Params{gin.Param{Key: "loanUid", Value: "missing"}}
	asUser(c, admin)
	updateLoanStatus(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateLoanLegacyEndpoint(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	user := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 1)

	w, c := jsonContext("POST", "/api/v1/loans", gin.H{"book_id": book.BookUid})
	asUser(c, user)
	createLoan(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(w)
	assert.Equal(t, models.LoanReserved, response["status"])
	assert.NotEmpty(t, response["copy_id"])
}

func TestGetLoansForbiddenForPlainUsers(t *testing.T) {
	setupTest()
	plain := seedUser(models.RoleUser, "")

	w, c := jsonContext("GET", "/api/v1/loans", nil)
	asUser(c, plain)
	getLoans(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetLoansScoped(t *testing.T) {
	setupTest()
	schoolA := uuid.New().String()
	schoolB := uuid.New().String()
	adminA := seedUser(models.RoleLibrarian, schoolA)
	userA := seedUser(models.RoleUser, schoolA)
	userB := seedUser(models.RoleUser, schoolB)
	bookA := seedBook(models.FormatPhysical, schoolA, 1)
	bookB := seedBook(models.FormatPhysical, schoolB, 1)

	_, _, err := engine.Request(bookA.BookUid, userA)
	assert.NoError(t, err)
	_, _, err = engine.Request(bookB.BookUid, userB)
	assert.NoError(t, err)

	w, c := jsonContext("GET", "/api/v1/loans", nil)
	asUser(c, adminA)
	getLoans(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var items []map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 1)
	assert.Equal(t, bookA.BookUid, items[0]["book_id"])
}

func TestGetMyLoansEndpoint(t *testing.T) {
	setupTest()
	school := uuid.New().String()
	user := seedUser(models.RoleUser, school)
	other := seedUser(models.RoleUser, school)
	book := seedBook(models.FormatPhysical, school, 2)

	_, _, err := engine.Request(book.BookUid, user)
	assert.NoError(t, err)
	_, _, err = engine.Request(book.BookUid, other)
	assert.NoError(t, err)

	w, c := jsonContext("GET", "/api/v1/loans/my", nil)
	asUser(c, user)
	getMyLoans(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var items []map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 1)
	assert.Equal(t, user.UserUid, items[0]["user_id"])
}

func TestLoanJSONDerivesOverdue(t *testing.T) {
	loan := &models.Loan{
		LoanUid: uuid.New().String(),
		Status:  models.LoanBorrowed,
		DueDate: time.Now().UTC().Add(-24 * time.Hour),
	}
	item := loanJSON(loan)
	assert.Equal(t, models.LoanOverdue, item["status"])
}
