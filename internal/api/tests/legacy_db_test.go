package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defTPmodh/library-management/internal/api/testutils"
	"github.com/defTPmodh/library-management/internal/models"
)

func TestDBRouteTypedOperations(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// insert
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		models.DBOperationRequest{Op: "insert", Title: "Hobbit", Author: "Tolkien", Genre: "Fantasy"},
		testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	var book models.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	assert.Equal(t, int64(1), book.ID)
	assert.Equal(t, "Fantasy", book.Genre)

	// select
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		models.DBOperationRequest{Op: "select"}, testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	var books []models.BookWithBorrow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &books))
	require.Len(t, books, 1)
	assert.Equal(t, "Hobbit", books[0].Title)

	// update/borrow goes through the circulation workflow
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		models.DBOperationRequest{
			Op: "update", Action: "borrow", BookID: book.ID,
			BorrowerName: "Alice", GRNumber: "GR100", ClassName: "5A",
		}, testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	var openCount int
	require.NoError(t, testCtx.DB.Get(&openCount,
		"SELECT COUNT(*) FROM borrows WHERE library = $1 AND book_id = $2 AND status = $3",
		models.BoysLibrary, book.ID, models.BorrowOpen))
	assert.Equal(t, 1, openCount)

	// update/return resolves the open borrow by book id
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		models.DBOperationRequest{Op: "update", Action: "return", BookID: book.ID},
		testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, testCtx.DB.Get(&openCount,
		"SELECT COUNT(*) FROM borrows WHERE library = $1 AND book_id = $2 AND status = $3",
		models.BoysLibrary, book.ID, models.BorrowOpen))
	assert.Equal(t, 0, openCount)

	// delete cascades like the primary route
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		models.DBOperationRequest{Op: "delete", BookID: book.ID}, testCtx.BoysSession)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int
	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM books WHERE library = $1", models.BoysLibrary))
	assert.Equal(t, 0, count)
}

func TestDBRouteCrossTenant(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// A boys' session may not address the girls' database
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-girls",
		models.DBOperationRequest{Op: "select"}, testCtx.BoysSession)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Unknown databases are rejected outright
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-all",
		models.DBOperationRequest{Op: "select"}, testCtx.BoysSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDBRouteRejectsBadOperations(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// The op enum is validated; free-text queries have no effect
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		map[string]string{"op": "DROP TABLE books"}, testCtx.BoysSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// insert without required fields
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		models.DBOperationRequest{Op: "insert", Title: "No Author"}, testCtx.BoysSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// update with an unknown action
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/db/books-boys",
		models.DBOperationRequest{Op: "update", Action: "renew", BookID: 1}, testCtx.BoysSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
