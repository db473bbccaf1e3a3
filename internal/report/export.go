// Package report writes ledger snapshots to spreadsheet files for sharing
// outside the system. The output format follows the file extension: .xlsx
// or .csv.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nfe-ledger/internal/domain/inventory"
	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/shared"
)

var inventoryHeader = []string{"Product Code", "Description", "Stock Quantity"}
var notesHeader = []string{"Natural Key", "Issued At", "Direction", "Entity", "Total"}

// InventoryLister provides the stock position for export
type InventoryLister interface {
	List(ctx context.Context) ([]inventory.Balance, error)
}

// NoteLister provides note summaries for export
type NoteLister interface {
	Filtered(ctx context.Context, filter shared.NoteFilter) ([]note.Summary, error)
}

// Exporter writes ledger snapshots to files
type Exporter struct {
	inventory InventoryLister
	notes     NoteLister
}

func NewExporter(inventory InventoryLister, notes NoteLister) *Exporter {
	return &Exporter{inventory: inventory, notes: notes}
}

// ExportInventory writes the current stock position to path
func (e *Exporter) ExportInventory(ctx context.Context, path string) error {
	balances, err := e.inventory.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load inventory for export: %w", err)
	}

	rows := make([][]string, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, []string{b.ProductCode, b.Description, b.StockQuantity.String()})
	}

	return writeRows(path, inventoryHeader, rows)
}

// ExportNotes writes the note listing matching the filter to path
func (e *Exporter) ExportNotes(ctx context.Context, path string, filter shared.NoteFilter) error {
	summaries, err := e.notes.Filtered(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load notes for export: %w", err)
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.NaturalKey,
			s.IssuedAt.Format(time.RFC3339),
			string(s.Direction),
			s.EntityName,
			s.Total.String(),
		})
	}

	return writeRows(path, notesHeader, rows)
}

func writeRows(path string, header []string, rows [][]string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return writeXLSX(path, header, rows)
	case ".csv":
		return writeCSV(path, header, rows)
	default:
		return fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
	}
}

func writeXLSX(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for col, value := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to write header cell %s: %w", cell, err)
		}
	}

	for rowIdx, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}
