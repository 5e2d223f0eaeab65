// Package export renders transaction listings for external consumption:
// a spreadsheet-friendly CSV download and a Google Sheets mirror.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"finai/internal/core"
)

// CSVFilename is the suggested download name.
const CSVFilename = "finai_transactions.csv"

var csvHeader = []string{"Date", "Type", "Montant (FCFA)", "Description", "Catégorie", "Source", "Notes"}

// WriteCSV streams transactions as semicolon-separated CSV with a UTF-8
// BOM so spreadsheet tools pick up accented characters.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		record := []string{
			tx.Date.Format("02/01/2006"),
			tx.Kind.Label(),
			strconv.FormatInt(tx.Amount.Units, 10),
			tx.Description,
			tx.DisplayName(),
			tx.Source.Label(),
			tx.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
