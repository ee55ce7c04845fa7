package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/defTPmodh/library-management/internal/importer"
	"github.com/defTPmodh/library-management/internal/models"
	"github.com/defTPmodh/library-management/internal/repository"
	"github.com/defTPmodh/library-management/internal/service"
	"github.com/defTPmodh/library-management/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// databaseLibraries maps the legacy database-name path parameter to the
// tenant it addresses.
var databaseLibraries = map[string]string{
	"books-girls": models.GirlsLibrary,
	"books-boys":  models.BoysLibrary,
}

// Handler holds the API route handlers
type Handler struct {
	service service.Service
	logger  *utils.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, logger *utils.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.POST("/auth", h.Login)
	api.POST("/auth/logout", h.Logout)

	authed := api.Group("")
	authed.Use(AuthMiddleware())

	authed.GET("/books", h.ListBooks)
	authed.POST("/books", h.CreateBook)
	authed.DELETE("/books/:id", h.DeleteBook)

	authed.GET("/borrows", h.ListBorrows)
	authed.POST("/borrows", h.CreateBorrow)
	authed.PUT("/borrows/:id", h.ReturnBorrow)

	authed.GET("/activities", h.ListActivities)
	authed.POST("/activities", h.CreateActivity)
	authed.GET("/transactions", h.ListTransactions)
	authed.POST("/transactions", h.CreateTransaction)

	authed.POST("/db/:database", h.DBOperation)
	authed.POST("/import", h.ImportBooks)
	authed.POST("/reports/download", h.DownloadReport)
}

// Login authenticates a staff account and sets the session cookie
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Employee ID and password are required")
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.SetCookie(SessionCookie, token, 24*60*60, "/", "", false, true)
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, Library: user.Library})
}

// Logout clears the session cookie
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Catalog handlers

func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.service.ListBooks(c.Request.Context(), sessionLibrary(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *Handler) CreateBook(c *gin.Context) {
	var req models.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Title and author are required")
		return
	}

	book, err := h.service.CreateBook(c.Request.Context(), sessionLibrary(c), sessionStaffID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *Handler) DeleteBook(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Book id must be numeric")
		return
	}

	if err := h.service.DeleteBook(c.Request.Context(), sessionLibrary(c), bookID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Circulation handlers

func (h *Handler) ListBorrows(c *gin.Context) {
	borrows, err := h.service.ListBorrows(c.Request.Context(), sessionLibrary(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrows)
}

func (h *Handler) CreateBorrow(c *gin.Context) {
	var req models.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "bookId, borrowerName, grNumber and className are required")
		return
	}

	borrow, err := h.service.BorrowBook(c.Request.Context(), sessionLibrary(c), sessionStaffID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, borrow)
}

func (h *Handler) ReturnBorrow(c *gin.Context) {
	var req models.ReturnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid return request")
			return
		}
	}

	borrow, err := h.service.ReturnBorrow(
		c.Request.Context(), sessionLibrary(c), sessionStaffID(c), c.Param("id"), req.ReturnDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrow)
}

// Audit log handlers

func (h *Handler) ListActivities(c *gin.Context) {
	activities, err := h.service.ListActivities(c.Request.Context(), sessionLibrary(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func (h *Handler) CreateActivity(c *gin.Context) {
	var req models.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Action is required")
		return
	}

	activity, err := h.service.RecordActivity(c.Request.Context(), sessionLibrary(c), sessionStaffID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, activity)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	transactions, err := h.service.ListTransactions(c.Request.Context(), sessionLibrary(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "borrowId, type and status are required")
		return
	}

	transaction, err := h.service.RecordTransaction(c.Request.Context(), sessionLibrary(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

// DBOperation serves the legacy database route with a typed operation
// enum. The addressed database must belong to the session's library.
func (h *Handler) DBOperation(c *gin.Context) {
	library, ok := databaseLibraries[c.Param("database")]
	if !ok {
		respondBadRequest(c, "Unknown database")
		return
	}
	if library != sessionLibrary(c) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "FORBIDDEN",
			Message: "Database does not belong to your library",
		})
		return
	}

	var req models.DBOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "op must be one of select, insert, delete, update")
		return
	}

	result, err := h.service.DBOperation(c.Request.Context(), library, sessionStaffID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportBooks handles a multipart spreadsheet upload
func (h *Handler) ImportBooks(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "Missing file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondBadRequest(c, "Unable to read uploaded file")
		return
	}
	defer file.Close()

	summary, err := h.service.ImportBooks(c.Request.Context(), sessionLibrary(c), sessionStaffID(c), file)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DownloadReport renders a monthly report and returns it as an attachment
func (h *Handler) DownloadReport(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "reportType and month are required")
		return
	}

	filename, content, err := h.service.GenerateReport(c.Request.Context(), sessionLibrary(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, content)
}

// Helpers

func sessionLibrary(c *gin.Context) string {
	return c.MustGet("library").(string)
}

func sessionStaffID(c *gin.Context) string {
	return c.MustGet("staffId").(string)
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "VALIDATION_ERROR",
		Message: message,
	})
}

// respondError maps service and repository failures onto the HTTP error
// taxonomy. Internal errors are logged but never echoed to the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status: "error", Code: "UNAUTHORIZED", Message: "Invalid credentials",
		})
	case errors.Is(err, repository.ErrBookNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status: "error", Code: "NOT_FOUND", Message: "Book not found",
		})
	case errors.Is(err, repository.ErrNoOpenBorrow):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status: "error", Code: "NOT_FOUND", Message: "No open borrow found",
		})
	case errors.Is(err, repository.ErrBorrowNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status: "error", Code: "NOT_FOUND", Message: "Borrow not found",
		})
	case errors.Is(err, repository.ErrDuplicateBookID):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status: "error", Code: "DUPLICATE_IDENTIFIER", Message: "Book id already in use",
		})
	case errors.Is(err, repository.ErrBookUnavailable):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status: "error", Code: "CONFLICT", Message: "Book is already borrowed",
		})
	case errors.Is(err, service.ErrInvalidOperation),
		errors.Is(err, service.ErrInvalidMonth),
		errors.Is(err, importer.ErrMalformedFile):
		respondBadRequest(c, err.Error())
	default:
		h.logger.Error("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status: "error", Code: "STORAGE_ERROR", Message: "Internal server error",
		})
	}
}
