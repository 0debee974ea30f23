package export

import (
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet of an exported workbook.
const SheetName = "Relevé Bancaire"

// Extension is appended to Filename by callers.
const Extension = ".xlsx"

// ContentType is the MIME type of a written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header is the first row of the sheet.
var Header = []string{"Date", "Libellé", "Débit", "Crédit"}

var extensionPattern = regexp.MustCompile(`\.[^/.]+$`)

// Rows maps transactions to sheet rows. Absent amounts are nil, which leaves the cell empty.
func Rows(txs []domain.Transaction) [][]interface{} {
	rows := make([][]interface{}, 0, len(txs))
	for _, tx := range txs {
		row := []interface{}{tx.Date, tx.Label, nil, nil}
		if tx.Debit != nil {
			row[2] = tx.Debit.InexactFloat64()
		}
		if tx.Credit != nil {
			row[3] = tx.Credit.InexactFloat64()
		}
		rows = append(rows, row)
	}
	return rows
}

// Filename names the workbook without its extension: the selected document's
// name minus its extension, or a dated consolidated name when nothing is selected.
func Filename(selected *domain.Document, now time.Time) string {
	if selected != nil {
		return extensionPattern.ReplaceAllString(selected.FileName, "")
	}
	return "Consolidé_" + now.Format("2006-01-02")
}

// WriteXLSX writes the transactions as a one-sheet workbook.
func WriteXLSX(w io.Writer, txs []domain.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("WriteXLSX: stream writer: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("WriteXLSX: header: %w", err)
	}

	for i, row := range Rows(txs) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("WriteXLSX: cell name: %w", err)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("WriteXLSX: flush: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteXLSX: write: %w", err)
	}
	return nil
}
