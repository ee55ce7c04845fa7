package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/defTPmodh/library-management/internal/models"
)

// Sentinel errors surfaced to the service layer
var (
	ErrBookNotFound    = errors.New("book not found")
	ErrDuplicateBookID = errors.New("book id already in use")
	ErrBookUnavailable = errors.New("book is already borrowed")
	ErrNoOpenBorrow    = errors.New("no open borrow found")
	ErrBorrowNotFound  = errors.New("borrow not found")
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	GetUserByEmpID(ctx context.Context, empID string) (*models.User, error)

	// Catalog operations
	ListBooks(ctx context.Context, library string) ([]models.BookWithBorrow, error)
	CreateBook(ctx context.Context, book *models.Book, staffID string) error
	DeleteBook(ctx context.Context, library string, bookID int64) error
	ImportBooks(ctx context.Context, library, staffID string, books []models.Book) (int, []string, error)

	// Circulation operations
	ListBorrows(ctx context.Context, library string) ([]models.BorrowWithBook, error)
	CreateBorrow(ctx context.Context, borrow *models.Borrow, staffID string) error
	ReturnBorrow(ctx context.Context, library, borrowID string, returnDate time.Time, staffID string) (*models.Borrow, error)
	FindOpenBorrowByBook(ctx context.Context, library string, bookID int64) (*models.Borrow, error)
	GetBorrow(ctx context.Context, library, borrowID string) (*models.Borrow, error)

	// Audit log operations
	ListActivities(ctx context.Context, library string) ([]models.ActivityView, error)
	CreateActivity(ctx context.Context, activity *models.Activity) error
	ListTransactions(ctx context.Context, library string) ([]models.TransactionView, error)
	CreateTransaction(ctx context.Context, transaction *models.Transaction) error

	// Reporting operations
	AccessionRecords(ctx context.Context, library string, from, to time.Time) ([]models.AccessionRecord, error)
	CirculationRecords(ctx context.Context, library string, from, to time.Time) ([]models.CirculationRecord, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) GetUserByEmpID(ctx context.Context, empID string) (*models.User, error) {
	query := `SELECT * FROM users WHERE emp_id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, empID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

// Catalog repository methods

// ListBooks returns all books of a library in id order, each joined with
// its open borrow if one exists.
func (r *PostgresRepository) ListBooks(ctx context.Context, library string) ([]models.BookWithBorrow, error) {
	var books []models.Book
	err := r.db.SelectContext(ctx, &books,
		`SELECT * FROM books WHERE library = $1 ORDER BY id ASC`, library)
	if err != nil {
		return nil, err
	}

	var open []models.Borrow
	err = r.db.SelectContext(ctx, &open,
		`SELECT * FROM borrows WHERE library = $1 AND status = $2`,
		library, models.BorrowOpen)
	if err != nil {
		return nil, err
	}

	openByBook := make(map[int64]models.Borrow, len(open))
	for _, b := range open {
		openByBook[b.BookID] = b
	}

	result := make([]models.BookWithBorrow, 0, len(books))
	for _, book := range books {
		entry := models.BookWithBorrow{Book: book}
		if b, ok := openByBook[book.ID]; ok {
			borrow := b
			entry.CurrentBorrow = &borrow
		}
		result = append(result, entry)
	}

	return result, nil
}

// CreateBook inserts a book and its "Book added" activity in one
// transaction. When book.ID is zero the lowest free id of the library is
// assigned; the per-library advisory lock keeps the id scan from racing
// with concurrent inserts, imports and deletes.
func (r *PostgresRepository) CreateBook(ctx context.Context, book *models.Book, staffID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = lockLibrary(ctx, tx, book.Library); err != nil {
		return err
	}

	if book.ID == 0 {
		book.ID, err = nextFreeBookID(ctx, tx, book.Library)
		if err != nil {
			return err
		}
	} else {
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM books WHERE library = $1 AND id = $2)`,
			book.Library, book.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			err = ErrDuplicateBookID
			return err
		}
	}

	if book.Genre == "" {
		book.Genre = "Uncategorized"
	}
	book.Status = models.BookAvailable
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}

	err = insertBookTx(ctx, tx, book)
	if err != nil {
		return err
	}

	err = insertActivity(ctx, tx, &models.Activity{
		Action:  "Book added",
		Library: book.Library,
		BookID:  &book.ID,
		UserID:  staffID,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteBook removes a book and every row that references it, in
// dependency order, inside one transaction. Remaining ids keep their
// values; freed ids are reused by the next insert.
func (r *PostgresRepository) DeleteBook(ctx context.Context, library string, bookID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = lockLibrary(ctx, tx, library); err != nil {
		return err
	}

	// Delete transactions of this book's borrows first (foreign key order)
	_, err = tx.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE borrow_id IN (SELECT id FROM borrows WHERE library = $1 AND book_id = $2)
	`, library, bookID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM borrows WHERE library = $1 AND book_id = $2`, library, bookID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM activities WHERE library = $1 AND book_id = $2`, library, bookID)
	if err != nil {
		return err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`DELETE FROM books WHERE library = $1 AND id = $2`, library, bookID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrBookNotFound
		return err
	}

	return tx.Commit()
}

// ImportBooks inserts one batch of imported books in a single transaction.
// Rows whose accession number already exists for the library are skipped
// and reported in the returned error list; the rest of the batch still
// commits. A transaction-level failure fails the whole batch.
func (r *PostgresRepository) ImportBooks(ctx context.Context, library, staffID string, books []models.Book) (int, []string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = lockLibrary(ctx, tx, library); err != nil {
		return 0, nil, err
	}

	usedIDs := make(map[int64]bool)
	var ids []int64
	err = tx.SelectContext(ctx, &ids,
		`SELECT id FROM books WHERE library = $1`, library)
	if err != nil {
		return 0, nil, err
	}
	for _, id := range ids {
		usedIDs[id] = true
	}

	seenAcc := make(map[string]bool)
	var accNos []string
	err = tx.SelectContext(ctx, &accNos,
		`SELECT acc_no FROM books WHERE library = $1 AND acc_no <> ''`, library)
	if err != nil {
		return 0, nil, err
	}
	for _, acc := range accNos {
		seenAcc[acc] = true
	}

	nextID := int64(1)
	inserted := 0
	var rowErrors []string

	for i := range books {
		book := &books[i]

		if book.AccNo != "" && seenAcc[book.AccNo] {
			rowErrors = append(rowErrors,
				fmt.Sprintf("accession number %s already exists", book.AccNo))
			continue
		}

		for usedIDs[nextID] {
			nextID++
		}
		book.ID = nextID
		usedIDs[nextID] = true

		book.Library = library
		book.Status = models.BookAvailable
		if book.Genre == "" {
			book.Genre = "Uncategorized"
		}
		if book.CreatedAt.IsZero() {
			book.CreatedAt = time.Now().UTC()
		}

		err = insertBookTx(ctx, tx, book)
		if err != nil {
			return 0, nil, err
		}

		err = insertActivity(ctx, tx, &models.Activity{
			Action:  "Book imported",
			Library: library,
			BookID:  &book.ID,
			UserID:  staffID,
		})
		if err != nil {
			return 0, nil, err
		}

		if book.AccNo != "" {
			seenAcc[book.AccNo] = true
		}
		inserted++
	}

	if err = tx.Commit(); err != nil {
		return 0, nil, err
	}
	return inserted, rowErrors, nil
}

// Circulation repository methods

func (r *PostgresRepository) ListBorrows(ctx context.Context, library string) ([]models.BorrowWithBook, error) {
	query := `
		SELECT b.*, k.title AS book_title, k.author AS book_author
		FROM borrows b
		JOIN books k ON k.library = b.library AND k.id = b.book_id
		WHERE b.library = $1
		ORDER BY b.borrow_date DESC
	`

	var borrows []models.BorrowWithBook
	err := r.db.SelectContext(ctx, &borrows, query, library)
	if err != nil {
		return nil, err
	}

	return borrows, nil
}

// CreateBorrow checks out a book: the status flip, the borrow row, its
// transaction record and the activity entry are written as one unit. The
// guarded UPDATE serializes concurrent borrow attempts; the loser sees
// zero affected rows and gets ErrBookUnavailable.
func (r *PostgresRepository) CreateBorrow(ctx context.Context, borrow *models.Borrow, staffID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `
		UPDATE books SET status = $1
		WHERE library = $2 AND id = $3 AND status = $4
	`, models.BookBorrowed, borrow.Library, borrow.BookID, models.BookAvailable)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM books WHERE library = $1 AND id = $2)`,
			borrow.Library, borrow.BookID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			err = ErrBookUnavailable
		} else {
			err = ErrBookNotFound
		}
		return err
	}

	if borrow.ID == "" {
		borrow.ID = uuid.New().String()
	}
	borrow.Status = models.BorrowOpen

	_, err = tx.ExecContext(ctx, `
		INSERT INTO borrows (id, library, book_id, borrower_name, gr_number, class_name, status, borrow_date, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, borrow.ID, borrow.Library, borrow.BookID, borrow.BorrowerName,
		borrow.GRNumber, borrow.ClassName, borrow.Status, borrow.BorrowDate, borrow.DueDate)
	if err != nil {
		return err
	}

	err = insertTransaction(ctx, tx, &models.Transaction{
		BorrowID: borrow.ID,
		Type:     models.TransactionBorrow,
		Status:   "completed",
		Date:     borrow.BorrowDate,
	})
	if err != nil {
		return err
	}

	err = insertActivity(ctx, tx, &models.Activity{
		Action:  "Book borrowed",
		Library: borrow.Library,
		BookID:  &borrow.BookID,
		UserID:  staffID,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ReturnBorrow closes an open borrow: the borrow row is locked FOR UPDATE
// so a second return of the same borrow finds nothing and writes nothing.
func (r *PostgresRepository) ReturnBorrow(ctx context.Context, library, borrowID string, returnDate time.Time, staffID string) (*models.Borrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var borrow models.Borrow
	err = tx.GetContext(ctx, &borrow, `
		SELECT * FROM borrows
		WHERE id = $1 AND library = $2 AND status = $3
		FOR UPDATE
	`, borrowID, library, models.BorrowOpen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNoOpenBorrow
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE borrows SET status = $1, return_date = $2 WHERE id = $3
	`, models.BorrowReturned, returnDate, borrow.ID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE books SET status = $1 WHERE library = $2 AND id = $3
	`, models.BookAvailable, library, borrow.BookID)
	if err != nil {
		return nil, err
	}

	err = insertTransaction(ctx, tx, &models.Transaction{
		BorrowID: borrow.ID,
		Type:     models.TransactionReturn,
		Status:   "completed",
		Date:     returnDate,
	})
	if err != nil {
		return nil, err
	}

	err = insertActivity(ctx, tx, &models.Activity{
		Action:  "Book returned",
		Library: library,
		BookID:  &borrow.BookID,
		UserID:  staffID,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	borrow.Status = models.BorrowReturned
	borrow.ReturnDate = &returnDate
	return &borrow, nil
}

// FindOpenBorrowByBook resolves the unique open borrow for a book, for the
// legacy return-by-book path.
func (r *PostgresRepository) FindOpenBorrowByBook(ctx context.Context, library string, bookID int64) (*models.Borrow, error) {
	var borrow models.Borrow
	err := r.db.GetContext(ctx, &borrow, `
		SELECT * FROM borrows
		WHERE library = $1 AND book_id = $2 AND status = $3
	`, library, bookID, models.BorrowOpen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoOpenBorrow
		}
		return nil, err
	}

	return &borrow, nil
}

// GetBorrow fetches a borrow by id within a library, open or returned.
func (r *PostgresRepository) GetBorrow(ctx context.Context, library, borrowID string) (*models.Borrow, error) {
	var borrow models.Borrow
	err := r.db.GetContext(ctx, &borrow,
		`SELECT * FROM borrows WHERE id = $1 AND library = $2`, borrowID, library)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBorrowNotFound
		}
		return nil, err
	}

	return &borrow, nil
}

// Audit log repository methods

func (r *PostgresRepository) ListActivities(ctx context.Context, library string) ([]models.ActivityView, error) {
	query := `
		SELECT a.id, a.timestamp, a.action, COALESCE(k.title, 'N/A') AS book_title, a.user_id
		FROM activities a
		LEFT JOIN books k ON k.library = a.library AND k.id = a.book_id
		WHERE a.library = $1
		ORDER BY a.timestamp DESC
	`

	var activities []models.ActivityView
	err := r.db.SelectContext(ctx, &activities, query, library)
	if err != nil {
		return nil, err
	}

	return activities, nil
}

func (r *PostgresRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	return insertActivity(ctx, r.db, activity)
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, library string) ([]models.TransactionView, error) {
	query := `
		SELECT t.id, t.date, t.type, t.status,
		       COALESCE(k.title, 'N/A') AS book_title, b.borrower_name
		FROM transactions t
		JOIN borrows b ON b.id = t.borrow_id
		LEFT JOIN books k ON k.library = b.library AND k.id = b.book_id
		WHERE b.library = $1
		ORDER BY t.date DESC
	`

	var transactions []models.TransactionView
	err := r.db.SelectContext(ctx, &transactions, query, library)
	if err != nil {
		return nil, err
	}

	return transactions, nil
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	return insertTransaction(ctx, r.db, transaction)
}

// Reporting repository methods

func (r *PostgresRepository) AccessionRecords(ctx context.Context, library string, from, to time.Time) ([]models.AccessionRecord, error) {
	query := `
		SELECT a.timestamp, a.action,
		       k.title AS book_title, k.author AS book_author, k.genre,
		       k.library AS book_library, k.status AS book_status,
		       u.emp_id AS staff_id
		FROM activities a
		LEFT JOIN books k ON k.library = a.library AND k.id = a.book_id
		LEFT JOIN users u ON u.emp_id = a.user_id
		WHERE a.library = $1 AND a.timestamp >= $2 AND a.timestamp < $3
		ORDER BY a.timestamp ASC
	`

	var records []models.AccessionRecord
	err := r.db.SelectContext(ctx, &records, query, library, from, to)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *PostgresRepository) CirculationRecords(ctx context.Context, library string, from, to time.Time) ([]models.CirculationRecord, error) {
	query := `
		SELECT t.date, t.type, t.status,
		       k.title AS book_title, k.author AS book_author, k.genre,
		       k.library AS book_library,
		       b.borrower_name, b.gr_number, b.class_name, b.due_date, b.return_date
		FROM transactions t
		JOIN borrows b ON b.id = t.borrow_id
		LEFT JOIN books k ON k.library = b.library AND k.id = b.book_id
		WHERE b.library = $1 AND t.date >= $2 AND t.date < $3
		ORDER BY t.date ASC
	`

	var records []models.CirculationRecord
	err := r.db.SelectContext(ctx, &records, query, library, from, to)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Helpers

// lockLibrary takes the per-library advisory lock for the duration of the
// transaction. Everything that assigns or frees book ids must hold it.
func lockLibrary(ctx context.Context, tx *sqlx.Tx, library string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, library)
	return err
}

// nextFreeBookID walks the library's ids in ascending order and returns the
// first gap, or one past the maximum when there is none.
func nextFreeBookID(ctx context.Context, tx *sqlx.Tx, library string) (int64, error) {
	var ids []int64
	err := tx.SelectContext(ctx, &ids,
		`SELECT id FROM books WHERE library = $1 ORDER BY id ASC`, library)
	if err != nil {
		return 0, err
	}

	next := int64(1)
	for _, id := range ids {
		if id != next {
			break
		}
		next++
	}
	return next, nil
}

func insertBookTx(ctx context.Context, tx *sqlx.Tx, book *models.Book) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO books (library, id, acc_no, class_no, title, author, publisher,
		                   genre, edition, pages, price, isbn, remarks, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, book.Library, book.ID, book.AccNo, book.ClassNo, book.Title, book.Author,
		book.Publisher, book.Genre, book.Edition, book.Pages, book.Price,
		book.ISBN, book.Remarks, book.Status, book.CreatedAt)
	return err
}

// execer covers both *sqlx.DB and *sqlx.Tx for the shared insert helpers
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertActivity(ctx context.Context, e execer, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}

	_, err := e.ExecContext(ctx, `
		INSERT INTO activities (id, action, library, book_id, user_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, activity.ID, activity.Action, activity.Library, activity.BookID,
		activity.UserID, activity.Timestamp)
	return err
}

func insertTransaction(ctx context.Context, e execer, transaction *models.Transaction) error {
	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}
	if transaction.Date.IsZero() {
		transaction.Date = time.Now().UTC()
	}

	_, err := e.ExecContext(ctx, `
		INSERT INTO transactions (id, borrow_id, type, status, date)
		VALUES ($1, $2, $3, $4, $5)
	`, transaction.ID, transaction.BorrowID, transaction.Type,
		transaction.Status, transaction.Date)
	return err
}
