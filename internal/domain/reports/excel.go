package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"pharmastock/internal/core/dates"
)

const (
	sheetStock    = "Stock"
	sheetExpiring = "Expiring"

	// ExcelContentType is the MIME type of the xlsx exports.
	ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	stockHeadings    = []string{"Product", "Company", "Packing", "Batch", "Expiry", "Batch Stock", "Product Stock", "Status"}
	expiringHeadings = []string{"Product", "Batch", "Expiry", "Expiry Date", "Days Left", "Stock"}
)

// ExportStockExcel writes every product and batch with its stock as an xlsx workbook.
func (s *Service) ExportStockExcel(ctx context.Context, w io.Writer, threshold int64) error {
	levels, err := s.StockLevels(ctx, threshold)
	if err != nil {
		return fmt.Errorf("export stock: %w", err)
	}

	f, err := newWorkbook(sheetStock, stockHeadings)
	if err != nil {
		return err
	}
	defer f.Close()

	row := 2
	for _, level := range levels {
		if len(level.Batches) == 0 {
			values := []any{level.ProductName, deref(level.Company), deref(level.Packing), "", "", 0, level.TotalStock, string(level.Status)}
			if err := setRow(f, sheetStock, row, values); err != nil {
				return err
			}
			row++
			continue
		}
		for _, b := range level.Batches {
			values := []any{level.ProductName, deref(level.Company), deref(level.Packing), b.BatchNo, b.Expiry, b.Stock, level.TotalStock, string(level.Status)}
			if err := setRow(f, sheetStock, row, values); err != nil {
				return err
			}
			row++
		}
	}

	return writeWorkbook(f, w)
}

// ExportExpiringExcel writes the expiring batches report as an xlsx workbook.
func (s *Service) ExportExpiringExcel(ctx context.Context, w io.Writer, windowDays int, asOf *dates.Date) error {
	report, err := s.Expiring(ctx, windowDays, asOf)
	if err != nil {
		return fmt.Errorf("export expiring: %w", err)
	}

	f, err := newWorkbook(sheetExpiring, expiringHeadings)
	if err != nil {
		return err
	}
	defer f.Close()

	for i, item := range report.Items {
		values := []any{item.ProductName, item.BatchNo, item.Expiry, item.ExpiryDate.FormatDisplay(), item.DaysLeft, item.Stock}
		if err := setRow(f, sheetExpiring, i+2, values); err != nil {
			return err
		}
	}

	return writeWorkbook(f, w)
}

func newWorkbook(sheet string, headings []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	values := make([]any, len(headings))
	for i, h := range headings {
		values[i] = h
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		f.Close()
		return nil, err
	}

	last, _ := excelize.ColumnNumberToName(len(headings))
	if err := f.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func writeWorkbook(f *excelize.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
