package httpapi

import (
	"bytes"
	"fmt"
	"vitalmesh/internal/models"
	"vitalmesh/internal/motion"

	"github.com/xuri/excelize/v2"
)

// HistoryExportHeader 导出表头
var HistoryExportHeader = []string{"Sample", "Stress Level", "Severity"}

// GenerateHistoryExport 生成压力历史 Excel 文件
func GenerateHistoryExport(deviceID string, points []models.HistoryPoint) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Stress History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetCellValue(sheetName, "A1", "Device"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, "B1", deviceID); err != nil {
		return nil, err
	}

	// 表头在第 3 行
	for col, header := range HistoryExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	if err := f.SetColWidth(sheetName, "A", "C", 16); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, p := range points {
		row := i + 4
		sev := motion.StressSeverity(&models.GSRReading{StressLevel: p.StressLevel})
		values := []any{p.SampleNumber, p.StressLevel, string(sev)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	return buf.Bytes(), nil
}
