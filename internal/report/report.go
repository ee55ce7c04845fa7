// Package report renders the monthly Excel reports: the accession register
// (catalog activity) and the transaction log (circulation events).
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/defTPmodh/library-management/internal/models"
)

const sheetName = "Report"

var accessionHeaders = []interface{}{
	"Date", "Time", "Action", "Book Title", "Author", "Genre", "Library", "Status", "Staff ID",
}

var transactionHeaders = []interface{}{
	"Date", "Time", "Type", "Book Title", "Author", "Genre", "Library",
	"Student Name", "GR Number", "Class", "Due Date", "Return Date", "Status",
}

// Filename returns the attachment name for a generated report.
func Filename(reportType, month string) string {
	return fmt.Sprintf("%s_report_%s.xlsx", reportType, month)
}

// BuildAccessionRegister renders activity records into a workbook, one row
// per activity in chronological order. Fields of deleted books render as
// "N/A" rather than failing the report.
func BuildAccessionRegister(records []models.AccessionRecord) (*excelize.File, error) {
	f, err := newWorkbook(accessionHeaders)
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := []interface{}{
			rec.Timestamp.Format("02/01/2006"),
			rec.Timestamp.Format("15:04:05"),
			rec.Action,
			na(rec.BookTitle),
			na(rec.BookAuthor),
			na(rec.Genre),
			na(rec.BookLibrary),
			na(rec.BookStatus),
			na(rec.StaffID),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// BuildTransactionLog renders circulation records into a workbook.
func BuildTransactionLog(records []models.CirculationRecord) (*excelize.File, error) {
	f, err := newWorkbook(transactionHeaders)
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := []interface{}{
			rec.Date.Format("02/01/2006"),
			rec.Date.Format("15:04:05"),
			rec.Type,
			na(rec.BookTitle),
			na(rec.BookAuthor),
			na(rec.Genre),
			na(rec.BookLibrary),
			na(rec.BorrowerName),
			na(rec.GRNumber),
			na(rec.ClassName),
			naDate(rec.DueDate),
			naDate(rec.ReturnDate),
			rec.Status,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// newWorkbook creates a single-sheet workbook with a bold header row.
func newWorkbook(headers []interface{}) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return nil, err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	endCell, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", endCell, style); err != nil {
		return nil, err
	}

	endCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", endCol, 18); err != nil {
		return nil, err
	}

	return f, nil
}

func na(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func naDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("02/01/2006")
}
