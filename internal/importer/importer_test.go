package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/defTPmodh/library-management/internal/models"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Reader {
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestParseBoysLayout(t *testing.T) {
	r := workbook(t, [][]interface{}{
		{"Date", "Acc No", "Class No", "Subject", "Title", "Edition", "Author", "Publishers", "Pages", "Price", "ISBN", "Remark"},
		{"2024-01-05", "B101", "823", "Fiction", "Moby-Dick: or, The Whale", "1st", "Melville", "Harper", "635", "Rs 450 (cloth)", "978-1", "donated"},
	})

	records, err := Parse(r, models.BoysLibrary)
	require.NoError(t, err)
	require.Len(t, records, 1)

	b := records[0].Book
	assert.Equal(t, models.BoysLibrary, b.Library)
	assert.Equal(t, "B101", b.AccNo)
	assert.Equal(t, "823", b.ClassNo)
	assert.Equal(t, "Moby-Dick", b.Title)
	assert.Equal(t, "Melville", b.Author)
	assert.Equal(t, "Harper", b.Publisher)
	assert.Equal(t, "Fiction", b.Genre)
	assert.Equal(t, "450", b.Price)
	assert.Equal(t, "donated", b.Remarks)
	assert.Equal(t, models.BookAvailable, b.Status)
	assert.Equal(t, 2, records[0].Row)
}

func TestParseGirlsLayout(t *testing.T) {
	r := workbook(t, [][]interface{}{
		{"Date", "Acc No", "Subject", "Class No", "Title", "Author", "Publisher", "Place", "Edition", "Pages", "Price", "Series", "ISBN", "Remarks"},
		{"2024-02-10", "G300", "History", "954", "A Short History", "Nehru", "Penguin", "Delhi", "", "400", "350", "Discovery", "978-2", "reference only"},
	})

	records, err := Parse(r, models.GirlsLibrary)
	require.NoError(t, err)
	require.Len(t, records, 1)

	b := records[0].Book
	assert.Equal(t, "Penguin, Delhi", b.Publisher)
	assert.Equal(t, "Series: Discovery. reference only", b.Remarks)
	assert.Equal(t, "History", b.Genre)
}

func TestParseGirlsPublisherPlaceOnly(t *testing.T) {
	r := workbook(t, [][]interface{}{
		{"header"},
		{"", "G1", "", "", "Some Title", "", "", "Mumbai"},
	})

	records, err := Parse(r, models.GirlsLibrary)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mumbai", records[0].Book.Publisher)
}

func TestParseDefaultsAndSkips(t *testing.T) {
	r := workbook(t, [][]interface{}{
		{"Date", "Acc No", "Class No", "Subject", "Title", "Edition", "Author", "Publishers", "Pages", "Price", "ISBN", "Remark"},
		{"", "", "", "", "", "", "", "", "", "", "", ""}, // skipped
		{"2024-01-05", "B102", "", "", ": subtitle only"}, // short row, empty title
		{"", "", "", "", "Only A Title"}, // no acc no, still kept
		{"   ", "   ", "", "", "   "}, // whitespace only, skipped
	})

	records, err := Parse(r, models.BoysLibrary)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Unknown Title", records[0].Book.Title)
	assert.Equal(t, "Unknown Author", records[0].Book.Author)
	assert.Equal(t, "Uncategorized", records[0].Book.Genre)

	assert.Equal(t, "Only A Title", records[1].Book.Title)
	assert.Empty(t, records[1].Book.AccNo)

	// Row numbers refer to the spreadsheet, so skipped rows leave gaps
	assert.Equal(t, 3, records[0].Row)
	assert.Equal(t, 4, records[1].Row)
}

func TestParseMalformedFile(t *testing.T) {
	_, err := Parse(strings.NewReader("not a zip archive"), models.BoysLibrary)
	assert.ErrorIs(t, err, ErrMalformedFile)
}

func TestCleanPrice(t *testing.T) {
	cases := map[string]string{
		"Rs 250":          "250",
		"Rs250":           "250",
		"250 (set of 3)":  "250",
		"Rs 99.50 (used)": "99.50",
		"120":             "120",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanPrice(in), "input %q", in)
	}
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Treasure Island", cleanTitle("Treasure Island: a tale"))
	assert.Equal(t, "Plain", cleanTitle("Plain"))
	assert.Equal(t, "Unknown Title", cleanTitle("  : only subtitle"))
}
