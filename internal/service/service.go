package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/defTPmodh/library-management/internal/importer"
	"github.com/defTPmodh/library-management/internal/models"
	"github.com/defTPmodh/library-management/internal/report"
	"github.com/defTPmodh/library-management/internal/repository"
)

// Sentinel errors for request-level failures
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidMonth       = errors.New("invalid month, expected YYYY-MM")
	ErrInvalidOperation   = errors.New("invalid operation")
)

// importBatchSize is the number of rows committed per import transaction.
// Chunking bounds transaction size and gives partial progress; it carries
// no semantics beyond that.
const importBatchSize = 50

// maxImportErrors bounds the per-row error list in the import summary.
const maxImportErrors = 100

// Service defines all the business logic operations
type Service interface {
	// Authentication
	Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error)

	// Catalog operations
	ListBooks(ctx context.Context, library string) ([]models.BookWithBorrow, error)
	CreateBook(ctx context.Context, library, staffID string, req models.CreateBookRequest) (*models.Book, error)
	DeleteBook(ctx context.Context, library string, bookID int64) error

	// Circulation
	ListBorrows(ctx context.Context, library string) ([]models.BorrowWithBook, error)
	BorrowBook(ctx context.Context, library, staffID string, req models.BorrowRequest) (*models.Borrow, error)
	ReturnBorrow(ctx context.Context, library, staffID, borrowID string, returnDate *time.Time) (*models.Borrow, error)
	ReturnBookByID(ctx context.Context, library, staffID string, bookID int64) (*models.Borrow, error)

	// Audit logs
	ListActivities(ctx context.Context, library string) ([]models.ActivityView, error)
	RecordActivity(ctx context.Context, library, staffID string, req models.CreateActivityRequest) (*models.Activity, error)
	ListTransactions(ctx context.Context, library string) ([]models.TransactionView, error)
	RecordTransaction(ctx context.Context, library string, req models.CreateTransactionRequest) (*models.Transaction, error)

	// Legacy typed-operation dispatch
	DBOperation(ctx context.Context, library, staffID string, req models.DBOperationRequest) (interface{}, error)

	// Bulk import
	ImportBooks(ctx context.Context, library, staffID string, file io.Reader) (*models.ImportResponse, error)

	// Reporting
	GenerateReport(ctx context.Context, library string, req models.ReportRequest) (string, []byte, error)
}

// LibraryService implements the Service interface
type LibraryService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	loanDays      int
	importPacer   *rate.Limiter
}

// NewLibraryService creates a new LibraryService
func NewLibraryService(repo repository.Repository, jwtSecret string, sessionHours, loanDays int) Service {
	return &LibraryService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: time.Duration(sessionHours) * time.Hour,
		loanDays:      loanDays,
		// Small pause between import batches so a large upload does not
		// monopolize the store.
		importPacer: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Authentication methods

// Login verifies staff credentials and returns the user with a signed
// session token carrying the tenant library.
func (s *LibraryService) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error) {
	user, err := s.repo.GetUserByEmpID(ctx, req.EmployeeID)
	if err != nil {
		return nil, "", fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.generateSessionToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("error generating token: %w", err)
	}

	return user, token, nil
}

// Catalog operations

func (s *LibraryService) ListBooks(ctx context.Context, library string) ([]models.BookWithBorrow, error) {
	books, err := s.repo.ListBooks(ctx, library)
	if err != nil {
		return nil, fmt.Errorf("error listing books: %w", err)
	}
	return books, nil
}

func (s *LibraryService) CreateBook(ctx context.Context, library, staffID string, req models.CreateBookRequest) (*models.Book, error) {
	book := &models.Book{
		Library:   library,
		Title:     req.Title,
		Author:    req.Author,
		Genre:     req.Genre,
		AccNo:     req.AccNo,
		ClassNo:   req.ClassNo,
		Publisher: req.Publisher,
	}
	if req.ID != nil {
		if *req.ID <= 0 {
			return nil, fmt.Errorf("%w: book id must be positive", ErrInvalidOperation)
		}
		book.ID = *req.ID
	}

	if err := s.repo.CreateBook(ctx, book, staffID); err != nil {
		return nil, err
	}

	return book, nil
}

func (s *LibraryService) DeleteBook(ctx context.Context, library string, bookID int64) error {
	return s.repo.DeleteBook(ctx, library, bookID)
}

// Circulation

func (s *LibraryService) ListBorrows(ctx context.Context, library string) ([]models.BorrowWithBook, error) {
	borrows, err := s.repo.ListBorrows(ctx, library)
	if err != nil {
		return nil, fmt.Errorf("error listing borrows: %w", err)
	}
	return borrows, nil
}

// BorrowBook checks out a book. The due date is always the borrow date
// plus the configured loan period.
func (s *LibraryService) BorrowBook(ctx context.Context, library, staffID string, req models.BorrowRequest) (*models.Borrow, error) {
	borrowDate := time.Now().UTC()
	if req.BorrowDate != nil {
		borrowDate = req.BorrowDate.UTC()
	}

	borrow := &models.Borrow{
		Library:      library,
		BookID:       req.BookID,
		BorrowerName: req.BorrowerName,
		GRNumber:     req.GRNumber,
		ClassName:    req.ClassName,
		BorrowDate:   borrowDate,
		DueDate:      borrowDate.AddDate(0, 0, s.loanDays),
	}

	if err := s.repo.CreateBorrow(ctx, borrow, staffID); err != nil {
		return nil, err
	}

	return borrow, nil
}

func (s *LibraryService) ReturnBorrow(ctx context.Context, library, staffID, borrowID string, returnDate *time.Time) (*models.Borrow, error) {
	when := time.Now().UTC()
	if returnDate != nil {
		when = returnDate.UTC()
	}

	return s.repo.ReturnBorrow(ctx, library, borrowID, when, staffID)
}

// ReturnBookByID is the legacy return path: it resolves the unique open
// borrow for the book and closes it.
func (s *LibraryService) ReturnBookByID(ctx context.Context, library, staffID string, bookID int64) (*models.Borrow, error) {
	borrow, err := s.repo.FindOpenBorrowByBook(ctx, library, bookID)
	if err != nil {
		return nil, err
	}

	return s.repo.ReturnBorrow(ctx, library, borrow.ID, time.Now().UTC(), staffID)
}

// Audit logs

func (s *LibraryService) ListActivities(ctx context.Context, library string) ([]models.ActivityView, error) {
	activities, err := s.repo.ListActivities(ctx, library)
	if err != nil {
		return nil, fmt.Errorf("error listing activities: %w", err)
	}
	return activities, nil
}

func (s *LibraryService) RecordActivity(ctx context.Context, library, staffID string, req models.CreateActivityRequest) (*models.Activity, error) {
	activity := &models.Activity{
		Action:  req.Action,
		Library: library,
		BookID:  req.BookID,
		UserID:  staffID,
	}

	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("error creating activity: %w", err)
	}

	return activity, nil
}

func (s *LibraryService) ListTransactions(ctx context.Context, library string) ([]models.TransactionView, error) {
	transactions, err := s.repo.ListTransactions(ctx, library)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return transactions, nil
}

// RecordTransaction appends a manual transaction. The referenced borrow
// must belong to the caller's library; borrow ids of other tenants are
// indistinguishable from missing ones.
func (s *LibraryService) RecordTransaction(ctx context.Context, library string, req models.CreateTransactionRequest) (*models.Transaction, error) {
	if _, err := s.repo.GetBorrow(ctx, library, req.BorrowID); err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		BorrowID: req.BorrowID,
		Type:     req.Type,
		Status:   req.Status,
	}

	if err := s.repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, fmt.Errorf("error creating transaction: %w", err)
	}

	return transaction, nil
}

// DBOperation dispatches the legacy database route on an explicit
// operation enum instead of sniffing intent out of a query string.
func (s *LibraryService) DBOperation(ctx context.Context, library, staffID string, req models.DBOperationRequest) (interface{}, error) {
	switch req.Op {
	case "select":
		return s.ListBooks(ctx, library)

	case "insert":
		if req.Title == "" || req.Author == "" {
			return nil, fmt.Errorf("%w: insert requires title and author", ErrInvalidOperation)
		}
		return s.CreateBook(ctx, library, staffID, models.CreateBookRequest{
			Title:     req.Title,
			Author:    req.Author,
			Genre:     req.Genre,
			AccNo:     req.AccNo,
			ClassNo:   req.ClassNo,
			Publisher: req.Publisher,
		})

	case "delete":
		if req.BookID <= 0 {
			return nil, fmt.Errorf("%w: delete requires bookId", ErrInvalidOperation)
		}
		if err := s.DeleteBook(ctx, library, req.BookID); err != nil {
			return nil, err
		}
		return map[string]bool{"success": true}, nil

	case "update":
		switch req.Action {
		case "borrow":
			if req.BookID <= 0 || req.BorrowerName == "" || req.GRNumber == "" || req.ClassName == "" {
				return nil, fmt.Errorf("%w: borrow requires bookId, borrowerName, grNumber and className", ErrInvalidOperation)
			}
			return s.BorrowBook(ctx, library, staffID, models.BorrowRequest{
				BookID:       req.BookID,
				BorrowerName: req.BorrowerName,
				GRNumber:     req.GRNumber,
				ClassName:    req.ClassName,
			})
		case "return":
			if req.BookID <= 0 {
				return nil, fmt.Errorf("%w: return requires bookId", ErrInvalidOperation)
			}
			return s.ReturnBookByID(ctx, library, staffID, req.BookID)
		default:
			return nil, fmt.Errorf("%w: unknown update action %q", ErrInvalidOperation, req.Action)
		}

	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, req.Op)
	}
}

// Bulk import

// ImportBooks parses the uploaded workbook and inserts it in batches. One
// bad row never aborts the import: duplicates are counted as failures and
// a failed batch fails only its own rows; batches already committed stay
// committed.
func (s *LibraryService) ImportBooks(ctx context.Context, library, staffID string, file io.Reader) (*models.ImportResponse, error) {
	records, err := importer.Parse(file, library)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResponse{Errors: []string{}}

	for start := 0; start < len(records); start += importBatchSize {
		if start > 0 {
			if err := s.importPacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		end := start + importBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		books := make([]models.Book, len(batch))
		for i, rec := range batch {
			books[i] = rec.Book
		}

		inserted, rowErrors, err := s.repo.ImportBooks(ctx, library, staffID, books)
		if err != nil {
			// The batch transaction rolled back: all of its rows failed.
			// Row numbers refer to the uploaded spreadsheet.
			result.Failed += len(batch)
			result.Errors = appendBounded(result.Errors,
				fmt.Sprintf("error processing rows %d-%d: %v",
					batch[0].Row, batch[len(batch)-1].Row, err))
			continue
		}

		result.Successful += inserted
		result.Failed += len(rowErrors)
		for _, msg := range rowErrors {
			result.Errors = appendBounded(result.Errors, msg)
		}
	}

	result.Message = fmt.Sprintf("Import completed. Successfully imported %d books.", result.Successful)
	return result, nil
}

func appendBounded(errs []string, msg string) []string {
	if len(errs) >= maxImportErrors {
		return errs
	}
	return append(errs, msg)
}

// Reporting

// GenerateReport renders the requested report for the calendar month and
// returns the attachment filename and the xlsx bytes.
func (s *LibraryService) GenerateReport(ctx context.Context, library string, req models.ReportRequest) (string, []byte, error) {
	monthStart, err := time.Parse("2006-01", req.Month)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidMonth, req.Month)
	}
	monthEnd := monthStart.AddDate(0, 1, 0)

	switch req.ReportType {
	case "accession":
		records, err := s.repo.AccessionRecords(ctx, library, monthStart, monthEnd)
		if err != nil {
			return "", nil, fmt.Errorf("error fetching activities: %w", err)
		}
		wb, err := report.BuildAccessionRegister(records)
		if err != nil {
			return "", nil, fmt.Errorf("error building report: %w", err)
		}
		buf, err := wb.WriteToBuffer()
		if err != nil {
			return "", nil, fmt.Errorf("error writing report: %w", err)
		}
		return report.Filename(req.ReportType, req.Month), buf.Bytes(), nil

	case "transactions":
		records, err := s.repo.CirculationRecords(ctx, library, monthStart, monthEnd)
		if err != nil {
			return "", nil, fmt.Errorf("error fetching transactions: %w", err)
		}
		wb, err := report.BuildTransactionLog(records)
		if err != nil {
			return "", nil, fmt.Errorf("error building report: %w", err)
		}
		buf, err := wb.WriteToBuffer()
		if err != nil {
			return "", nil, fmt.Errorf("error writing report: %w", err)
		}
		return report.Filename(req.ReportType, req.Month), buf.Bytes(), nil

	default:
		return "", nil, fmt.Errorf("%w: unknown report type %q", ErrInvalidOperation, req.ReportType)
	}
}

// Helper methods
func (s *LibraryService) generateSessionToken(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":     user.EmpID,
		"library": user.Library,
		"exp":     expirationTime.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
