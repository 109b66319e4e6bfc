package main

import (
	"net/http"

	"school-library-backend/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// dashboardStats returns role-scoped counters.
func dashboardStats(c *gin.Context) {
	user := currentUser(c)
	stats := gin.H{}

	switch user.Role {
	case models.RoleSuperAdmin:
		stats["total_schools"] = count(db.Model(&models.School{}))
		stats["pending_schools"] = count(db.Model(&models.School{}).Where("status = ?", models.SchoolPending))
		stats["total_users"] = count(db.Model(&models.User{}))
		stats["total_books"] = count(db.Model(&models.Book{}))
		stats["total_loans"] = count(db.Model(&models.Loan{}))

	case models.RoleSchoolAdmin, models.RoleLibrarian:
		var bookUids []string
		db.Model(&models.Book{}).Where("school_uid = ?", user.SchoolUid).Pluck("book_uid", &bookUids)

		stats["school_books"] = int64(len(bookUids))
		if len(bookUids) > 0 {
			stats["active_loans"] = count(db.Model(&models.Loan{}).
				Where("book_uid IN ? AND status IN ?", bookUids,
					[]string{models.LoanBorrowed, models.LoanReserved}))
			stats["total_copies"] = count(db.Model(&models.BookCopy{}).
				Where("book_uid IN ?", bookUids))
		} else {
			stats["active_loans"] = int64(0)
			stats["total_copies"] = int64(0)
		}

	default:
		stats["my_loans"] = count(db.Model(&models.Loan{}).
			Where("user_uid = ?", user.UserUid))
		stats["active_loans"] = count(db.Model(&models.Loan{}).
			Where("user_uid = ? AND status IN ?", user.UserUid,
				[]string{models.LoanBorrowed, models.LoanReserved}))
	}

	c.JSON(http.StatusOK, stats)
}

func count(query *gorm.DB) int64 {
	var total int64
	query.Count(&total)
	return total
}
