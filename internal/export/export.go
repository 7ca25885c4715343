package export

import (
	"fmt"
	"time"

	"stayhub/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Reservations"

// Header is the column order of the exported sheet.
var Header = []string{
	"Reservation ID", "Property", "Location", "Guest", "Check-in", "Check-out",
	"Nights", "Guests", "Total", "Status", "Created",
}

// statusFills colours the status cell per lifecycle state.
var statusFills = map[string]string{
	models.StatusPending:   "#FFF2CC",
	models.StatusConfirmed: "#E2EFDA",
	models.StatusCancelled: "#F8CBAD",
	models.StatusCompleted: "#DDEBF7",
}

// ReservationsWorkbook renders reservations as an xlsx document.
func ReservationsWorkbook(reservations []*models.Reservation, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating header style: %w", err)
	}

	for i, title := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, title)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Header))
	_ = f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle)

	statusStyles := make(map[string]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("error creating status style: %w", err)
		}
		statusStyles[status] = id
	}

	for i, r := range reservations {
		row := i + 2
		values := []interface{}{
			r.ID,
			r.PropertyTitle,
			r.PropertyLocation,
			r.GuestUsername,
			r.CheckIn.Format(models.DateLayout),
			r.CheckOut.Format(models.DateLayout),
			r.Nights(),
			r.GuestsCount,
			r.TotalPrice.StringFixed(2),
			r.Status,
			r.CreatedAt.UTC().Format(models.TimestampLayout),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}

		if style, ok := statusStyles[r.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(10, row)
			_ = f.SetCellStyle(SheetName, statusCell, statusCell, style)
		}
	}

	footerCell, _ := excelize.CoordinatesToCellName(1, len(reservations)+3)
	_ = f.SetCellValue(SheetName, footerCell, "Generated "+generatedAt.UTC().Format(models.TimestampLayout))

	_ = f.SetColWidth(SheetName, "A", "A", 16)
	_ = f.SetColWidth(SheetName, "B", "D", 28)
	_ = f.SetColWidth(SheetName, "E", lastCol, 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
