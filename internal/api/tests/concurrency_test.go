package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defTPmodh/library-management/internal/api/testutils"
	"github.com/defTPmodh/library-management/internal/models"
)

func TestConcurrentBorrows(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	book := createBook(t, testCtx, testCtx.BoysSession, models.CreateBookRequest{
		Title: "Hobbit", Author: "Tolkien",
	})

	// Race many borrow attempts for the same book; the guarded status
	// flip must let exactly one through
	const numGoroutines = 10

	codes := make(chan int, numGoroutines)
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/borrows", models.BorrowRequest{
				BookID:       book.ID,
				BorrowerName: fmt.Sprintf("Student %d", i),
				GRNumber:     fmt.Sprintf("GR%03d", i),
				ClassName:    "5A",
			}, testCtx.BoysSession)

			codes <- w.Code
		}(i)
	}

	wg.Wait()
	close(codes)

	created, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}

	assert.Equal(t, 1, created, "exactly one borrow should win")
	assert.Equal(t, numGoroutines-1, conflicts, "every loser should get a conflict")

	// The losers wrote nothing
	var openCount int
	require.NoError(t, testCtx.DB.Get(&openCount,
		"SELECT COUNT(*) FROM borrows WHERE library = $1 AND book_id = $2",
		models.BoysLibrary, book.ID))
	assert.Equal(t, 1, openCount)

	var txCount int
	require.NoError(t, testCtx.DB.Get(&txCount, `
		SELECT COUNT(*) FROM transactions t
		JOIN borrows b ON b.id = t.borrow_id
		WHERE b.library = $1 AND b.book_id = $2`, models.BoysLibrary, book.ID))
	assert.Equal(t, 1, txCount)
}

func TestConcurrentBookCreation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// Concurrent inserts all scan for the lowest free id; the advisory
	// lock serializes them so every book gets a distinct id with no gaps
	const numGoroutines = 10

	ids := make(chan int64, numGoroutines)
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/books", models.CreateBookRequest{
				Title:  fmt.Sprintf("Concurrent Book %d", i),
				Author: "Author",
			}, testCtx.BoysSession)

			if w.Code != http.StatusCreated {
				ids <- 0
				return
			}

			var book models.Book
			if err := json.Unmarshal(w.Body.Bytes(), &book); err != nil {
				ids <- 0
				return
			}
			ids <- book.ID
		}(i)
	}

	wg.Wait()
	close(ids)

	var assigned []int64
	for id := range ids {
		assigned = append(assigned, id)
	}

	require.Len(t, assigned, numGoroutines)
	sort.Slice(assigned, func(i, j int) bool { return assigned[i] < assigned[j] })
	for i, id := range assigned {
		assert.Equal(t, int64(i+1), id, "ids should be assigned continuously without gaps")
	}

	var count int
	require.NoError(t, testCtx.DB.Get(&count,
		"SELECT COUNT(*) FROM books WHERE library = $1", models.BoysLibrary))
	assert.Equal(t, numGoroutines, count)
}
