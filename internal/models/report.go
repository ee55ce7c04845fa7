package models

import "time"

// AccessionRecord is one row of the accession register report: an activity
// joined with its book and the acting staff account. Joined fields are
// pointers because the book may since have been deleted.
type AccessionRecord struct {
	Timestamp   time.Time `db:"timestamp"`
	Action      string    `db:"action"`
	BookTitle   *string   `db:"book_title"`
	BookAuthor  *string   `db:"book_author"`
	Genre       *string   `db:"genre"`
	BookLibrary *string   `db:"book_library"`
	BookStatus  *string   `db:"book_status"`
	StaffID     *string   `db:"staff_id"`
}

// CirculationRecord is one row of the transaction log report: a transaction
// joined with its borrow and book.
type CirculationRecord struct {
	Date         time.Time  `db:"date"`
	Type         string     `db:"type"`
	Status       string     `db:"status"`
	BookTitle    *string    `db:"book_title"`
	BookAuthor   *string    `db:"book_author"`
	Genre        *string    `db:"genre"`
	BookLibrary  *string    `db:"book_library"`
	BorrowerName *string    `db:"borrower_name"`
	GRNumber     *string    `db:"gr_number"`
	ClassName    *string    `db:"class_name"`
	DueDate      *time.Time `db:"due_date"`
	ReturnDate   *time.Time `db:"return_date"`
}
