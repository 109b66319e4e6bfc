package models

import (
	"time"

	"gorm.io/datatypes"
)

// User roles.
const (
	RoleSuperAdmin  = "super_admin"
	RoleSchoolAdmin = "school_admin"
	RoleLibrarian   = "librarian"
	RoleTeacher     = "teacher"
	RoleUser        = "user"
)

// School statuses.
const (
	SchoolPending  = "pending"
	SchoolApproved = "approved"
	SchoolRejected = "rejected"
)

// Book formats.
const (
	FormatPhysical = "physical"
	FormatDigital  = "digital"
	FormatBoth     = "both"
)

// Copy statuses.
const (
	CopyAvailable = "available"
	CopyReserved  = "reserved"
	CopyBorrowed  = "borrowed"
	CopyDamaged   = "damaged"
)

// Loan statuses. Reserved is kept for compatibility with the old
// direct-reservation flow; Overdue is derived at read time and never stored.
const (
	LoanPendingApproval = "pending_approval"
	LoanApproved        = "approved"
	LoanReserved        = "reserved"
	LoanBorrowed        = "borrowed"
	LoanReturned        = "returned"
	LoanCompleted       = "completed"
	LoanRejected        = "rejected"
	LoanOverdue         = "overdue"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	UserUid      string `gorm:"type:uuid;uniqueIndex;not null"`
	Email        string `gorm:"size:120;uniqueIndex;not null"`
	FullName     string `gorm:"size:120;not null"`
	Phone        string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:20;not null;default:'user'"`
	Verified     bool   `gorm:"not null;default:false"`
	SchoolUid    string `gorm:"type:uuid"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type School struct {
	ID           uint   `gorm:"primaryKey"`
	SchoolUid    string `gorm:"type:uuid;uniqueIndex;not null"`
	Name         string `gorm:"size:120;uniqueIndex;not null"`
	Address      string `gorm:"not null"`
	Country      string `gorm:"size:80;default:'France'"`
	Description  string
	Status       string `gorm:"size:20;not null;default:'pending'"`
	AdminUserUid string `gorm:"type:uuid;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Book struct {
	ID             uint   `gorm:"primaryKey"`
	BookUid        string `gorm:"type:uuid;uniqueIndex;not null"`
	Title          string `gorm:"size:200;not null"`
	Authors        datatypes.JSON
	ISBN           string `gorm:"size:20"`
	Description    string
	Categories     datatypes.JSON
	Language       string  `gorm:"size:10;default:'fr'"`
	Format         string  `gorm:"size:10;not null;default:'physical'"`
	Price          float64 `gorm:"default:0"`
	CoverImage     string
	FilePath       string
	SchoolUid      string `gorm:"type:uuid;index;not null"`
	PublishedByUid string `gorm:"type:uuid;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type BookCopy struct {
	ID        uint   `gorm:"primaryKey"`
	CopyUid   string `gorm:"type:uuid;uniqueIndex;not null"`
	BookUid   string `gorm:"type:uuid;index;not null"`
	Barcode   string `gorm:"size:60"`
	Condition string `gorm:"size:20;default:'good'"`
	Status    string `gorm:"size:20;not null;default:'available'"`
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Loan struct {
	ID           uint   `gorm:"primaryKey"`
	LoanUid      string `gorm:"type:uuid;uniqueIndex;not null"`
	BookUid      string `gorm:"type:uuid;index;not null"`
	CopyUid      string `gorm:"type:uuid"` // bound at approval, empty until then
	UserUid      string `gorm:"type:uuid;index;not null"`
	Status       string `gorm:"size:20;not null;default:'pending_approval'"`
	DueDate      time.Time
	BorrowedAt   *time.Time
	ReturnedAt   *time.Time
	ReturnReport string
	AdminNotes   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AnalyticsEvent rows are written best-effort by the analytics recorder.
type AnalyticsEvent struct {
	ID         uint   `gorm:"primaryKey"`
	EventUid   string `gorm:"type:uuid;uniqueIndex;not null"`
	Kind       string `gorm:"size:20;not null"`
	BookUid    string `gorm:"type:uuid;index"`
	UserUid    string `gorm:"type:uuid;index"`
	LoanUid    string `gorm:"type:uuid"`
	Detail     string
	RecordedAt time.Time
}

// ActiveLoanStatuses is the set of statuses that block a new request
// for the same (book, user) pair.
var ActiveLoanStatuses = []string{LoanPendingApproval, LoanApproved, LoanReserved, LoanBorrowed}
