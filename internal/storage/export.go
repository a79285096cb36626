package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

const ordersSheet = "Orders"

var orderHeaders = []string{
	"ID", "Клиент ID", "Имя", "Телефон", "Адрес", "Дата доставки",
	"Товар ID", "Товар", "Статус", "Создан", "Выполнен",
}

// ExportOrdersToExcel writes every order to <dir>/orders_<timestamp>.xlsx
// and returns the file path.
func (s *PostgresStorage) ExportOrdersToExcel(ctx context.Context, dir string, now time.Time) (string, error) {
	const operation = "storage.ExportOrdersToExcel"

	orders, err := s.ListOrders(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}

	path, err := WriteOrdersWorkbook(orders, dir, now)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	return path, nil
}

// WriteOrdersWorkbook renders orders into a single-sheet workbook.
func WriteOrdersWorkbook(orders []OrderRecord, dir string, now time.Time) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}

	for col, header := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(ordersSheet, cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, order := range orders {
		completed := ""
		if !order.CompletedAt.IsZero() {
			completed = order.CompletedAt.Format("2006-01-02 15:04")
		}
		data := []interface{}{
			order.ID,
			order.CustomerID,
			order.CustomerName,
			order.Phone,
			order.Address,
			order.DeliveryDate,
			order.ProductID,
			order.ProductName,
			string(order.Status),
			order.CreatedAt.Format("2006-01-02 15:04"),
			completed,
		}
		for col, value := range data {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(ordersSheet, cell, value); err != nil {
				return "", fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("failed to create style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(orderHeaders), 1)
	if err := f.SetCellStyle(ordersSheet, "A1", lastHeader, style); err != nil {
		return "", fmt.Errorf("failed to style header: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("orders_%s.xlsx", now.Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}
	return path, nil
}
