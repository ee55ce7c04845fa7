package testutils

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/defTPmodh/library-management/internal/api"
	"github.com/defTPmodh/library-management/internal/config"
	"github.com/defTPmodh/library-management/internal/models"
	"github.com/defTPmodh/library-management/internal/repository"
	"github.com/defTPmodh/library-management/internal/service"
	"github.com/defTPmodh/library-management/internal/utils"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router       *gin.Engine
	Repository   repository.Repository
	Service      service.Service
	JWTSecret    []byte
	DB           *sqlx.DB
	GirlsSession string
	BoysSession  string
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	if cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	} else {
		cfg.Database.DBName = "library_test"
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	// Set up database (creates schema and seeds the two staff accounts)
	db, err := config.SetupDatabase(cfg)
	require.NoError(t, err, "Failed to set up test database")

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewLibraryService(repo, cfg.Auth.JWTSecret, cfg.Auth.SessionHours, cfg.Library.LoanDays)

	// Create API handler
	handler := api.NewHandler(svc, utils.NewLogger())

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start each test from empty catalog tables
	cleanupTables(t, db)

	return &TestContext{
		Router:       router,
		Repository:   repo,
		Service:      svc,
		JWTSecret:    []byte(cfg.Auth.JWTSecret),
		DB:           db,
		GirlsSession: signSession(t, cfg.Auth.JWTSecret, "GIRLS001", models.GirlsLibrary),
		BoysSession:  signSession(t, cfg.Auth.JWTSecret, "BOYS001", models.BoysLibrary),
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *testing.T, testCtx *TestContext) {
	if testCtx.DB != nil {
		cleanupTables(t, testCtx.DB)
		testCtx.DB.Close()
	}
}

// cleanupTables removes catalog data between tests; the seeded staff
// accounts are kept.
func cleanupTables(t *testing.T, db *sqlx.DB) {
	for _, table := range []string{"transactions", "borrows", "activities", "books"} {
		_, err := db.Exec("DELETE FROM " + table)
		if err != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

// signSession creates a session token the way the login handler does
func signSession(t *testing.T, secret, empID, library string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     empID,
		"library": library,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err, "Failed to sign session token")

	return tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, session string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	attachSession(req, session)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// PerformUpload executes a multipart file upload against the router
func PerformUpload(r http.Handler, path, fieldName, fileName string, content []byte, session string) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile(fieldName, fileName)
	part.Write(content)
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	attachSession(req, session)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func attachSession(req *http.Request, session string) {
	if session != "" {
		req.AddCookie(&http.Cookie{Name: api.SessionCookie, Value: session})
	}
}
