// Package report renders charge session history for operators.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"chargehub/backend/services/chargers-service/internal/models"
)

// ContentType is the MIME type of the XLSX export.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Sessions"

var sessionColumns = []string{"Session ID", "User ID", "Reservation ID", "Started (UTC)", "Ended (UTC)", "Duration (min)", "Status"}

// WriteSessions writes one sheet with a row per session to w. Open sessions are measured up
// to now.
func WriteSessions(w io.Writer, charger models.Charger, sessions []models.ChargeSession, now time.Time) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	title := fmt.Sprintf("Charger %s (%s), station %s", charger.ID, charger.ConnectorType, charger.StationID)
	if err := file.SetCellValue(sheetName, "A1", title); err != nil {
		return err
	}

	const headerRow = 3
	if err := writeRow(file, headerRow, toAny(sessionColumns)); err != nil {
		return err
	}
	if style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, headerRow)
		end, _ := excelize.CoordinatesToCellName(len(sessionColumns), headerRow)
		_ = file.SetCellStyle(sheetName, start, end, style)
	}

	for i, s := range sessions {
		if err := writeRow(file, headerRow+1+i, sessionRow(s, now)); err != nil {
			return err
		}
	}

	return file.Write(w)
}

func sessionRow(s models.ChargeSession, now time.Time) []any {
	reservation := ""
	if s.ReservationID != nil {
		reservation = s.ReservationID.String()
	}
	ended, status := "", "active"
	if s.EndTime != nil {
		ended = s.EndTime.UTC().Format(time.RFC3339)
		status = "completed"
	}
	minutes := s.Duration(now).Round(time.Second).Minutes()
	return []any{
		s.ID.String(),
		s.UserID.String(),
		reservation,
		s.StartTime.UTC().Format(time.RFC3339),
		ended,
		minutes,
		status,
	}
}

func writeRow(file *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return file.SetSheetRow(sheetName, cell, &values)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
