package loans

import (
	"time"

	"school-library-backend/pkg/analytics"
	"school-library-backend/pkg/keymutex"
	"school-library-backend/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoanPeriod is the default borrowing window granted at request time.
const LoanPeriod = 14 * 24 * time.Hour

// Engine drives the loan state machine and keeps loan status and copy
// inventory consistent. It holds no per-loan state and is safe for
// concurrent use; every multi-step sequence runs under a keyed lock plus a
// status-guarded conditional update on the copy.
type Engine struct {
	db       *gorm.DB
	locks    *keymutex.KeyedMutex
	recorder *analytics.Recorder
}

// NewEngine creates an engine. recorder may be nil.
func NewEngine(db *gorm.DB, recorder *analytics.Recorder) *Engine {
	return &Engine{
		db:       db,
		locks:    keymutex.New(),
		recorder: recorder,
	}
}

// Request creates a pending-approval loan request for bookUid. No copy is
// bound yet; availability only gates the request. Returns the created loan
// and the book title.
func (e *Engine) Request(bookUid string, user *models.User) (*models.Loan, string, error) {
	var book models.Book
	if err := e.db.Where("book_uid = ?", bookUid).First(&book).Error; err != nil {
		return nil, "", ErrNotFound
	}
	if book.Format != models.FormatPhysical && book.Format != models.FormatBoth {
		return nil, "", ErrInvalidRequest
	}

	unlock := e.locks.Lock("request:" + bookUid + ":" + user.UserUid)
	defer unlock()

	var active int64
	err := e.db.Model(&models.Loan{}).
		Where("book_uid = ? AND user_uid = ? AND status IN ?", bookUid, user.UserUid, models.ActiveLoanStatuses).
		Count(&active).Error
	if err != nil {
		return nil, "", err
	}
	if active > 0 {
		return nil, "", ErrConflict
	}

	var available int64
	err = e.db.Model(&models.BookCopy{}).
		Where("book_uid = ? AND status = ?", bookUid, models.CopyAvailable).
		Count(&available).Error
	if err != nil {
		return nil, "", err
	}
	if available == 0 {
		return nil, "", ErrConflict
	}

	loan := models.Loan{
		LoanUid: uuid.New().String(),
		BookUid: bookUid,
		UserUid: user.UserUid,
		Status:  models.LoanPendingApproval,
		DueDate: time.Now().UTC().Add(LoanPeriod),
	}
	if err := e.db.Create(&loan).Error; err != nil {
		return nil, "", err
	}

	e.record(&loan, "requested")
	return &loan, book.Title, nil
}

// Reserve is the legacy direct-reservation flow: it binds an available copy
// immediately and creates the loan in the reserved status.
func (e *Engine) Reserve(bookUid string, user *models.User, dueDate time.Time) (*models.Loan, error) {
	var book models.Book
	if err := e.db.Where("book_uid = ?", bookUid).First(&book).Error; err != nil {
		return nil, ErrNotFound
	}
	if book.Format != models.FormatPhysical && book.Format != models.FormatBoth {
		return nil, ErrInvalidRequest
	}

	unlock := e.locks.Lock("request:" + bookUid + ":" + user.UserUid)
	defer unlock()

	var active int64
	err := e.db.Model(&models.Loan{}).
		Where("book_uid = ? AND user_uid = ? AND status IN ?", bookUid, user.UserUid, models.ActiveLoanStatuses).
		Count(&active).Error
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, ErrConflict
	}

	loan := models.Loan{
		LoanUid: uuid.New().String(),
		BookUid: bookUid,
		UserUid: user.UserUid,
		Status:  models.LoanReserved,
		DueDate: dueDate,
	}

	unlockBook := e.locks.Lock("book:" + bookUid)
	defer unlockBook()

	err = e.db.Transaction(func(tx *gorm.DB) error {
		copyUid, err := bindAvailableCopy(tx, bookUid)
		if err != nil {
			return err
		}
		loan.CopyUid = copyUid
		return tx.Create(&loan).Error
	})
	if err != nil {
		return nil, err
	}

	e.record(&loan, "reserved")
	return &loan, nil
}

// UpdateStatus applies one transition of the loan state machine. Copy-status
// and loan-status changes for a transition commit or roll back together; an
// invalid transition leaves everything untouched. notes lands in the return
// report for the returned transition and in the admin notes everywhere else.
func (e *Engine) UpdateStatus(loanUid, target string, actor *models.User, notes string) (*models.Loan, error) {
	var loan models.Loan
	if err := e.db.Where("loan_uid = ?", loanUid).First(&loan).Error; err != nil {
		return nil, ErrNotFound
	}
	var book models.Book
	if err := e.db.Where("book_uid = ?", loan.BookUid).First(&book).Error; err != nil {
		return nil, ErrNotFound
	}
	if !CanTransition(actor, &loan, book.SchoolUid, target) {
		return nil, ErrForbidden
	}

	var err error
	switch target {
	case models.LoanApproved:
		err = e.approve(&loan)
	case models.LoanBorrowed:
		err = e.markBorrowed(&loan)
	case models.LoanReturned:
		err = e.markReturned(&loan, notes)
	case models.LoanCompleted:
		err = e.complete(&loan, notes)
	case models.LoanRejected:
		err = e.reject(&loan, notes)
	default:
		err = ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	e.record(&loan, target)
	return &loan, nil
}

// approve binds the first available copy (creation order) and flips it to
// reserved. Two concurrent approvals racing for the last copy are decided by
// the per-book lock and the status guard on the copy update: the loser gets
// ErrConflict. The loan write carries its own status guard, so a caller
// holding a stale snapshot loses to whichever transition committed first and
// the copy binding rolls back with the transaction.
func (e *Engine) approve(loan *models.Loan) error {
	if loan.Status != models.LoanPendingApproval {
		return ErrInvalidTransition
	}

	unlock := e.locks.Lock("book:" + loan.BookUid)
	defer unlock()

	return e.db.Transaction(func(tx *gorm.DB) error {
		copyUid, err := bindAvailableCopy(tx, loan.BookUid)
		if err != nil {
			return err
		}
		loan.CopyUid = copyUid
		loan.Status = models.LoanApproved
		res := tx.Model(&models.Loan{}).
			Where("id = ? AND status = ?", loan.ID, models.LoanPendingApproval).
			Updates(map[string]interface{}{
				"copy_uid": loan.CopyUid,
				"status":   loan.Status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
}

func (e *Engine) markBorrowed(loan *models.Loan) error {
	if loan.Status != models.LoanApproved && loan.Status != models.LoanReserved {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	return e.db.Transaction(func(tx *gorm.DB) error {
		if loan.CopyUid != "" {
			err := tx.Model(&models.BookCopy{}).
				Where("copy_uid = ?", loan.CopyUid).
				Update("status", models.CopyBorrowed).Error
			if err != nil {
				return err
			}
		}
		loan.Status = models.LoanBorrowed
		loan.BorrowedAt = &now
		res := tx.Model(&models.Loan{}).
			Where("id = ? AND status IN ?", loan.ID,
				[]string{models.LoanApproved, models.LoanReserved}).
			Updates(map[string]interface{}{
				"status":      loan.Status,
				"borrowed_at": loan.BorrowedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
}

// markReturned frees the copy immediately, before any administrative
// validation of the return report.
func (e *Engine) markReturned(loan *models.Loan, returnReport string) error {
	if loan.Status != models.LoanBorrowed {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	return e.db.Transaction(func(tx *gorm.DB) error {
		if loan.CopyUid != "" {
			err := tx.Model(&models.BookCopy{}).
				Where("copy_uid = ?", loan.CopyUid).
				Update("status", models.CopyAvailable).Error
			if err != nil {
				return err
			}
		}
		loan.Status = models.LoanReturned
		loan.ReturnedAt = &now
		loan.ReturnReport = returnReport
		res := tx.Model(&models.Loan{}).
			Where("id = ? AND status = ?", loan.ID, models.LoanBorrowed).
			Updates(map[string]interface{}{
				"status":        loan.Status,
				"returned_at":   loan.ReturnedAt,
				"return_report": loan.ReturnReport,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
}

func (e *Engine) complete(loan *models.Loan, adminNotes string) error {
	if loan.Status != models.LoanReturned {
		return ErrInvalidTransition
	}
	loan.Status = models.LoanCompleted
	loan.AdminNotes = adminNotes
	res := e.db.Model(&models.Loan{}).
		Where("id = ? AND status = ?", loan.ID, models.LoanReturned).
		Updates(map[string]interface{}{
			"status":      loan.Status,
			"admin_notes": loan.AdminNotes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// reject is only legal before a copy was bound.
func (e *Engine) reject(loan *models.Loan, adminNotes string) error {
	if loan.Status != models.LoanPendingApproval {
		return ErrInvalidTransition
	}
	loan.Status = models.LoanRejected
	loan.AdminNotes = adminNotes
	res := e.db.Model(&models.Loan{}).
		Where("id = ? AND status = ?", loan.ID, models.LoanPendingApproval).
		Updates(map[string]interface{}{
			"status":      loan.Status,
			"admin_notes": loan.AdminNotes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ListAll returns every loan for super admins and the loans of the actor's
// school for school admins and librarians.
func (e *Engine) ListAll(actor *models.User) ([]models.Loan, error) {
	if !CanListAll(actor) {
		return nil, ErrForbidden
	}

	var result []models.Loan
	if actor.Role == models.RoleSuperAdmin {
		if err := e.db.Find(&result).Error; err != nil {
			return nil, err
		}
		return result, nil
	}

	var bookUids []string
	err := e.db.Model(&models.Book{}).
		Where("school_uid = ?", actor.SchoolUid).
		Pluck("book_uid", &bookUids).Error
	if err != nil {
		return nil, err
	}
	if len(bookUids) == 0 {
		return []models.Loan{}, nil
	}
	if err := e.db.Where("book_uid IN ?", bookUids).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ListForUser returns the user's own loans, store order.
func (e *Engine) ListForUser(userUid string) ([]models.Loan, error) {
	var result []models.Loan
	if err := e.db.Where("user_uid = ?", userUid).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// EffectiveStatus derives overdue for borrowed loans past their due date.
// The stored status stays borrowed so the return transition still applies.
func EffectiveStatus(loan *models.Loan, now time.Time) string {
	if loan.Status == models.LoanBorrowed && loan.DueDate.Before(now) {
		return models.LoanOverdue
	}
	return loan.Status
}

// bindAvailableCopy picks the oldest available copy of the book and flips it
// to reserved with a status-guarded update. Returns ErrConflict when the
// book has no available copy left.
func bindAvailableCopy(tx *gorm.DB, bookUid string) (string, error) {
	var copies []models.BookCopy
	err := tx.Where("book_uid = ? AND status = ?", bookUid, models.CopyAvailable).
		Order("id ASC").Find(&copies).Error
	if err != nil {
		return "", err
	}

	for i := range copies {
		res := tx.Model(&models.BookCopy{}).
			Where("id = ? AND status = ?", copies[i].ID, models.CopyAvailable).
			Update("status", models.CopyReserved)
		if res.Error != nil {
			return "", res.Error
		}
		if res.RowsAffected == 1 {
			return copies[i].CopyUid, nil
		}
	}
	return "", ErrConflict
}

func (e *Engine) record(loan *models.Loan, detail string) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(analytics.KindLoanStatus, loan.BookUid, loan.UserUid, loan.LoanUid, detail)
}
