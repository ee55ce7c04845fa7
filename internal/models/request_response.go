package models

import "time"

// Request models
type LoginRequest struct {
	EmployeeID string `json:"employeeId" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type CreateBookRequest struct {
	ID        *int64 `json:"id"` // optional caller-supplied id
	Title     string `json:"title" binding:"required"`
	Author    string `json:"author" binding:"required"`
	Genre     string `json:"genre"`
	AccNo     string `json:"accNo"`
	ClassNo   string `json:"classNo"`
	Publisher string `json:"publisher"`
}

type BorrowRequest struct {
	BookID       int64      `json:"bookId" binding:"required"`
	BorrowerName string     `json:"borrowerName" binding:"required"`
	GRNumber     string     `json:"grNumber" binding:"required"`
	ClassName    string     `json:"className" binding:"required"`
	BorrowDate   *time.Time `json:"borrowDate"`
}

type ReturnRequest struct {
	ReturnDate *time.Time `json:"returnDate"`
}

type CreateActivityRequest struct {
	Action string `json:"action" binding:"required"`
	BookID *int64 `json:"bookId"`
}

type CreateTransactionRequest struct {
	BorrowID string `json:"borrowId" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=borrow return"`
	Status   string `json:"status" binding:"required"`
}

// DBOperationRequest is the typed replacement for the legacy free-text
// query route: the operation is an explicit enum, never parsed out of a
// client-supplied SQL string.
type DBOperationRequest struct {
	Op string `json:"op" binding:"required,oneof=select insert delete update"`

	// insert fields
	Title     string `json:"title"`
	Author    string `json:"author"`
	Genre     string `json:"genre"`
	AccNo     string `json:"accNo"`
	ClassNo   string `json:"classNo"`
	Publisher string `json:"publisher"`

	// delete / update target
	BookID int64 `json:"bookId"`

	// update fields
	Action       string `json:"action"` // "borrow" or "return"
	BorrowerName string `json:"borrowerName"`
	GRNumber     string `json:"grNumber"`
	ClassName    string `json:"className"`
}

type ReportRequest struct {
	ReportType string `json:"reportType" binding:"required,oneof=accession transactions"`
	Month      string `json:"month" binding:"required"` // "YYYY-MM"
}

// Response models
type AuthResponse struct {
	Success bool   `json:"success"`
	Library string `json:"library"`
}

// BookWithBorrow is a book joined with its open borrow, if any
type BookWithBorrow struct {
	Book
	CurrentBorrow *Borrow `json:"currentBorrow,omitempty"`
}

// BorrowWithBook is a borrow joined with display fields of its book
type BorrowWithBook struct {
	Borrow
	BookTitle  string `db:"book_title" json:"bookTitle"`
	BookAuthor string `db:"book_author" json:"bookAuthor"`
}

// ActivityView is the flattened activity shape returned by the audit log
type ActivityView struct {
	ID        string    `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Action    string    `db:"action" json:"action"`
	BookTitle string    `db:"book_title" json:"bookTitle"`
	UserID    string    `db:"user_id" json:"userId"`
}

// TransactionView is the flattened transaction shape returned by the audit log
type TransactionView struct {
	ID           string    `db:"id" json:"id"`
	Date         time.Time `db:"date" json:"date"`
	Type         string    `db:"type" json:"type"`
	Status       string    `db:"status" json:"status"`
	BookTitle    string    `db:"book_title" json:"bookTitle"`
	BorrowerName string    `db:"borrower_name" json:"borrowerName"`
}

type ImportResponse struct {
	Message    string   `json:"message"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
