package main

import (
	"errors"
	"net/http"
	"time"

	"school-library-backend/pkg/loans"
	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
)

// requestLoan creates a pending-approval loan request for a physical book.
func requestLoan(c *gin.Context) {
	user := currentUser(c)

	var request struct {
		BookUid string `json:"book_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book_id is required", "details": err.Error()})
		return
	}

	loan, bookTitle, err := engine.Request(request.BookUid, user)
	if err != nil {
		loanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Loan request submitted. Awaiting admin approval.",
		"loan_id":    loan.LoanUid,
		"status":     loan.Status,
		"book_title": bookTitle,
	})
}

// createLoan is the legacy direct-reservation flow: the copy is bound right
// away and the loan starts in the reserved status.
func createLoan(c *gin.Context) {
	user := currentUser(c)

	var request struct {
		BookUid string `json:"book_id" binding:"required"`
		DueDate string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	dueDate := time.Now().UTC().Add(loans.LoanPeriod)
	if request.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, request.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid due_date, use RFC 3339"})
			return
		}
		dueDate = parsed
	}

	loan, err := engine.Reserve(request.BookUid, user, dueDate)
	if err != nil {
		loanError(c, err)
		return
	}
	c.JSON(http.StatusOK, loanJSON(loan))
}

func getLoans(c *gin.Context) {
	user := currentUser(c)

	result, err := engine.ListAll(user)
	if err != nil {
		loanError(c, err)
		return
	}

	items := make([]gin.H, len(result))
	for i := range result {
		items[i] = loanJSON(&result[i])
	}
	c.JSON(http.StatusOK, items)
}

func getMyLoans(c *gin.Context) {
	user := currentUser(c)

	result, err := engine.ListForUser(user.UserUid)
	if err != nil {
		loanError(c, err)
		return
	}

	items := make([]gin.H, len(result))
	for i := range result {
		items[i] = loanJSON(&result[i])
	}
	c.JSON(http.StatusOK, items)
}

func updateLoanStatus(c *gin.Context) {
	user := currentUser(c)

	var request struct {
		Status       string `json:"status" binding:"required"`
		AdminNotes   string `json:"admin_notes"`
		ReturnReport string `json:"return_report"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required", "details": err.Error()})
		return
	}

	notes := request.AdminNotes
	if request.Status == models.LoanReturned {
		notes = request.ReturnReport
	}

	loan, err := engine.UpdateStatus(c.Param("loanUid"), request.Status, user, notes)
	if err != nil {
		loanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Loan status updated",
		"status":  loan.Status,
	})
}

// loanError maps the engine taxonomy to HTTP status codes.
func loanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, loans.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, loans.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, loans.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, loans.ErrInvalidTransition), errors.Is(err, loans.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func loanJSON(loan *models.Loan) gin.H {
	item := gin.H{
		"id":            loan.LoanUid,
		"book_id":       loan.BookUid,
		"copy_id":       loan.CopyUid,
		"user_id":       loan.UserUid,
		"status":        loans.EffectiveStatus(loan, time.Now().UTC()),
		"due_date":      loan.DueDate.UTC().Format(time.RFC3339),
		"return_report": loan.ReturnReport,
		"admin_notes":   loan.AdminNotes,
		"created_at":    loan.CreatedAt.UTC().Format(time.RFC3339),
	}
	if loan.BorrowedAt != nil {
		item["borrowed_at"] = loan.BorrowedAt.UTC().Format(time.RFC3339)
	}
	if loan.ReturnedAt != nil {
		item["returned_at"] = loan.ReturnedAt.UTC().Format(time.RFC3339)
	}
	return item
}
