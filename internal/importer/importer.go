// Package importer parses bulk-import spreadsheets into book records.
// Each library has its own fixed column layout; parsing is pure and does
// not touch the database.
package importer

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/defTPmodh/library-management/internal/models"
)

// ErrMalformedFile is returned when the upload is not a readable workbook.
var ErrMalformedFile = errors.New("unable to read spreadsheet")

// Column layouts by position, one per library. The first row of the sheet
// is the header and is skipped.
var (
	girlsColumns = []string{
		"date", "accNo", "subject", "classNo", "title", "author", "publisher",
		"publisherPlace", "edition", "pages", "price", "series", "isbn", "remarks",
	}
	boysColumns = []string{
		"date", "accNo", "classNo", "subject", "title", "edition", "author",
		"publishers", "pages", "price", "isbn", "remark",
	}
)

var (
	pricePrefixRe = regexp.MustCompile(`Rs\s*`)
	priceParenRe  = regexp.MustCompile(`\s*\([^)]*\)`)
)

// Record is a parsed book together with its 1-based spreadsheet row
// number, so failures can be reported against the uploaded file.
type Record struct {
	Book models.Book
	Row  int
}

// Parse reads the first sheet of an xlsx workbook and returns normalized
// book records for the given library. Rows missing both an accession
// number and a title are skipped silently.
func Parse(r io.Reader, library string) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedFile)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}

	columns := boysColumns
	if library == models.GirlsLibrary {
		columns = girlsColumns
	}

	var records []Record
	for i, row := range rows {
		if i == 0 {
			continue // header row
		}

		fields := rowFields(row, columns)
		if fields["accNo"] == "" && fields["title"] == "" {
			continue
		}

		records = append(records, Record{
			Row: i + 1,
			Book: models.Book{
				Library:   library,
				AccNo:     fields["accNo"],
				ClassNo:   fields["classNo"],
				Title:     cleanTitle(fields["title"]),
				Author:    defaultString(fields["author"], "Unknown Author"),
				Publisher: composePublisher(library, fields),
				Genre:     defaultString(fields["subject"], "Uncategorized"),
				Edition:   fields["edition"],
				Pages:     fields["pages"],
				Price:     cleanPrice(fields["price"]),
				ISBN:      fields["isbn"],
				Remarks:   composeRemarks(library, fields),
				Status:    models.BookAvailable,
			},
		})
	}

	return records, nil
}

// rowFields maps a row's cells to the layout's field names, tolerating
// short rows.
func rowFields(row []string, columns []string) map[string]string {
	fields := make(map[string]string, len(columns))
	for i, name := range columns {
		if i < len(row) {
			fields[name] = strings.TrimSpace(row[i])
		} else {
			fields[name] = ""
		}
	}
	return fields
}

// cleanTitle strips the subtitle: everything from the first colon on.
func cleanTitle(title string) string {
	title = strings.TrimSpace(strings.SplitN(title, ":", 2)[0])
	if title == "" {
		return "Unknown Title"
	}
	return title
}

// cleanPrice removes the "Rs" currency prefix and any parenthetical
// annotation, e.g. "Rs 250 (set of 3)" -> "250".
func cleanPrice(price string) string {
	price = pricePrefixRe.ReplaceAllString(price, "")
	price = priceParenRe.ReplaceAllString(price, "")
	return strings.TrimSpace(price)
}

// composePublisher joins the girls layout's publisher and place columns;
// the boys layout carries a single publishers column.
func composePublisher(library string, fields map[string]string) string {
	if library == models.GirlsLibrary {
		publisher := fields["publisher"]
		if place := fields["publisherPlace"]; place != "" {
			if publisher != "" {
				publisher += ", " + place
			} else {
				publisher = place
			}
		}
		return publisher
	}
	return fields["publishers"]
}

// composeRemarks folds the girls layout's series column into the remarks.
func composeRemarks(library string, fields map[string]string) string {
	if library == models.GirlsLibrary {
		remarks := fields["remarks"]
		if series := fields["series"]; series != "" {
			remarks = "Series: " + series + ". " + remarks
		}
		return strings.TrimSpace(remarks)
	}
	return fields["remark"]
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
