package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"golang.org/x/crypto/bcrypt"
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	// Ensure the two staff accounts exist
	if err := seedStaff(db, cfg.Auth.SeedPassword); err != nil {
		return nil, fmt.Errorf("failed to seed staff accounts: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table (staff accounts)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			emp_id VARCHAR(32) PRIMARY KEY,
			password VARCHAR(255) NOT NULL,
			library VARCHAR(32) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	// Create books table. Ids are assigned per library (lowest free id),
	// so the primary key is composite.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			library VARCHAR(32) NOT NULL,
			id BIGINT NOT NULL,
			acc_no VARCHAR(64) NOT NULL DEFAULT '',
			class_no VARCHAR(64) NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			publisher TEXT NOT NULL DEFAULT '',
			genre VARCHAR(128) NOT NULL DEFAULT 'Uncategorized',
			edition VARCHAR(64) NOT NULL DEFAULT '',
			pages VARCHAR(32) NOT NULL DEFAULT '',
			price VARCHAR(64) NOT NULL DEFAULT '',
			isbn VARCHAR(64) NOT NULL DEFAULT '',
			remarks TEXT NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'available',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (library, id)
		)
	`)
	if err != nil {
		return err
	}

	// Create borrows table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS borrows (
			id VARCHAR(36) PRIMARY KEY,
			library VARCHAR(32) NOT NULL,
			book_id BIGINT NOT NULL,
			borrower_name VARCHAR(255) NOT NULL,
			gr_number VARCHAR(64) NOT NULL,
			class_name VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			borrow_date TIMESTAMP NOT NULL,
			due_date TIMESTAMP NOT NULL,
			return_date TIMESTAMP,
			FOREIGN KEY (library, book_id) REFERENCES books(library, id)
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(36) PRIMARY KEY,
			borrow_id VARCHAR(36) NOT NULL REFERENCES borrows(id),
			type VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			date TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create activities table. book_id is nullable: manual audit entries
	// have no book reference.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS activities (
			id VARCHAR(36) PRIMARY KEY,
			action VARCHAR(255) NOT NULL,
			library VARCHAR(32) NOT NULL,
			book_id BIGINT,
			user_id VARCHAR(32) NOT NULL,
			timestamp TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_borrows_book ON borrows(library, book_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_activities_library_time ON activities(library, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_books_acc_no ON books(library, acc_no) WHERE acc_no <> ''",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}

// seedStaff inserts the two fixed staff accounts if they are missing.
// Existing rows are left untouched so password changes survive restarts.
func seedStaff(db *sqlx.DB, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	staff := []struct {
		empID   string
		library string
	}{
		{"GIRLS001", "Girls Library"},
		{"BOYS001", "Boys Library"},
	}

	for _, s := range staff {
		_, err = db.Exec(`
			INSERT INTO users (emp_id, password, library)
			VALUES ($1, $2, $3)
			ON CONFLICT (emp_id) DO NOTHING
		`, s.empID, string(hash), s.library)
		if err != nil {
			return err
		}
	}

	return nil
}
