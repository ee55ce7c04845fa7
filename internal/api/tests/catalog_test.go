package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defTPmodh/library-management/internal/api/testutils"
	"github.com/defTPmodh/library-management/internal/models"
)

func createBook(t *testing.T, testCtx *testutils.TestContext, session string, req models.CreateBookRequest) models.Book {
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/books", req, session)
	require.Equal(t, http.StatusCreated, w.Code, "create book failed: %s", w.Body.String())

	var book models.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	return book
}

func TestCreateBookAssignsLowestFreeID(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// An empty library starts at id 1 and counts up
	first := createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		Title: "Hobbit", Author: "Tolkien",
	})
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, models.BookAvailable, first.Status)
	assert.Equal(t, "Uncategorized", first.Genre)

	second := createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		Title: "Treasure Island", Author: "Stevenson",
	})
	assert.Equal(t, int64(2), second.ID)

	// Deleting book 1 leaves a gap that the next insert reuses
	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/books/1", nil, testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	third := createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		Title: "Kidnapped", Author: "Stevenson",
	})
	assert.Equal(t, int64(1), third.ID)

	// Book 2 kept its id (no compaction)
	var count int
	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM books WHERE library = $1 AND id = 2", models.BoysLibrary))
	assert.Equal(t, 1, count)
}

func TestCreateBookDuplicateID(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	id := int64(5)
	createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		ID: &id, Title: "Hobbit", Author: "Tolkien",
	})

	// Same id again must be rejected without writing anything
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/books", models.CreateBookRequest{
		ID: &id, Title: "Another", Author: "Writer",
	}, testCtx.BoysSession)
	assert.Equal(t, http.StatusConflict, w.Code)

	var count int
	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM books WHERE library = $1", models.BoysLibrary))
	assert.Equal(t, 1, count)
}

func TestCreateBookValidation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// Missing author
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/books",
		map[string]string{"title": "Hobbit"}, testCtx.BoysSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Non-numeric id on delete
	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/books/abc", nil, testCtx.BoysSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteBookCascades(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	book := createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		Title: "Hobbit", Author: "Tolkien",
	})
	other := createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		Title: "Treasure Island", Author: "Stevenson",
	})

	// Two full borrow/return cycles leave two borrows and four transactions
	for i := 0; i < 2; i++ {
		borrow := borrowBook(t, testCtx, testCtx.BoysSession, models.BorrowRequest{
			BookID: book.ID, BorrowerName: "Alice", GRNumber: "GR100", ClassName: "5A",
		})
		w := testutils.PerformRequest(testCtx.Router, http.MethodPut,
			"/api/borrows/"+borrow.ID, nil, testCtx.BoysSession)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete,
		fmt.Sprintf("/api/books/%d", book.ID), nil, testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	// No row of any kind may still reference the deleted book
	var count int
	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM borrows WHERE library = $1 AND book_id = $2", models.BoysLibrary, book.ID))
	assert.Equal(t, 0, count)

	require.NoError(t, testCtx.DB.Get(&count, `
		SELECT COUNT(*) FROM transactions t
		JOIN borrows b ON b.id = t.borrow_id
		WHERE b.library = $1 AND b.book_id = $2`, models.BoysLibrary, book.ID))
	assert.Equal(t, 0, count)

	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM activities WHERE library = $1 AND book_id = $2", models.BoysLibrary, book.ID))
	assert.Equal(t, 0, count)

	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM books WHERE library = $1 AND id = $2", models.BoysLibrary, book.ID))
	assert.Equal(t, 0, count)

	// The other book is untouched
	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM books WHERE library = $1 AND id = $2", models.BoysLibrary, other.ID))
	assert.Equal(t, 1, count)
}

func TestDeleteMissingBook(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/books/42", nil, testCtx.BoysSession)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBookWritesActivity(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	createBook(t, testCtx, testCtx.GirlsSession, models.CreateBookRequest{
		Title: "Little Women", Author: "Alcott",
	})

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/activities", nil, testCtx.GirlsSession)
	assert.Equal(t, http.StatusOK, w.Code)

	var activities []models.ActivityView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activities))
	require.Len(t, activities, 1)
	assert.Equal(t, "Book added", activities[0].Action)
	assert.Equal(t, "Little Women", activities[0].BookTitle)
	assert.Equal(t, "GIRLS001", activities[0].UserID)
}

func TestLibrariesAreIsolated(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	createBook(t, testCtx, testCtx.GirlsSession, models.CreateBookRequest{
		Title: "Pride and Prejudice", Author: "Austen",
	})

	// The girls' catalog is invisible to the boys' session
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/books", nil, testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	var books []models.BookWithBorrow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &books))
	assert.Empty(t, books)

	// Both libraries use the same id space independently
	boysBook := createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		Title: "Hobbit", Author: "Tolkien",
	})
	assert.Equal(t, int64(1), boysBook.ID)
}
