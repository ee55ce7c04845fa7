package models

import (
	"time"
)

// Library names for the two tenants
const (
	GirlsLibrary = "Girls Library"
	BoysLibrary  = "Boys Library"
)

// Book status values
const (
	BookAvailable = "available"
	BookBorrowed  = "borrowed"
)

// Borrow status values
const (
	BorrowOpen     = "borrowed"
	BorrowReturned = "returned"
)

// Transaction types
const (
	TransactionBorrow = "borrow"
	TransactionReturn = "return"
)

// User represents a staff account for one of the two libraries
type User struct {
	EmpID     string    `db:"emp_id" json:"empId"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Library   string    `db:"library" json:"library"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Book represents a catalog entry. Book ids are small integers unique
// within a library; the current borrower is joined from the open borrow
// rather than stored on the book row.
type Book struct {
	Library   string    `db:"library" json:"library"`
	ID        int64     `db:"id" json:"id"`
	AccNo     string    `db:"acc_no" json:"accNo,omitempty"`
	ClassNo   string    `db:"class_no" json:"classNo,omitempty"`
	Title     string    `db:"title" json:"title"`
	Author    string    `db:"author" json:"author"`
	Publisher string    `db:"publisher" json:"publisher,omitempty"`
	Genre     string    `db:"genre" json:"genre"`
	Edition   string    `db:"edition" json:"edition,omitempty"`
	Pages     string    `db:"pages" json:"pages,omitempty"`
	Price     string    `db:"price" json:"price,omitempty"`
	ISBN      string    `db:"isbn" json:"isbn,omitempty"`
	Remarks   string    `db:"remarks" json:"remarks,omitempty"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Borrow represents one lending episode of a book
type Borrow struct {
	ID           string     `db:"id" json:"id"`
	Library      string     `db:"library" json:"library"`
	BookID       int64      `db:"book_id" json:"bookId"`
	BorrowerName string     `db:"borrower_name" json:"borrowerName"`
	GRNumber     string     `db:"gr_number" json:"grNumber"`
	ClassName    string     `db:"class_name" json:"className"`
	Status       string     `db:"status" json:"status"`
	BorrowDate   time.Time  `db:"borrow_date" json:"borrowDate"`
	DueDate      time.Time  `db:"due_date" json:"dueDate"`
	ReturnDate   *time.Time `db:"return_date" json:"returnDate,omitempty"`
}

// Transaction is an immutable audit record of a circulation event
type Transaction struct {
	ID       string    `db:"id" json:"id"`
	BorrowID string    `db:"borrow_id" json:"borrowId"`
	Type     string    `db:"type" json:"type"`
	Status   string    `db:"status" json:"status"`
	Date     time.Time `db:"date" json:"date"`
}

// Activity is an immutable audit record of a catalog/inventory event.
// BookID is nullable so manual entries can exist without a book reference.
type Activity struct {
	ID        string    `db:"id" json:"id"`
	Action    string    `db:"action" json:"action"`
	Library   string    `db:"library" json:"library"`
	BookID    *int64    `db:"book_id" json:"bookId,omitempty"`
	UserID    string    `db:"user_id" json:"userId"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}
