package export

import (
	"bytes"
	"testing"
	"time"

	"stayhub/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReservationsWorkbook(t *testing.T) {
	checkIn := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	reservations := []*models.Reservation{
		{
			ID:            7,
			PropertyTitle: "Sea View Flat",
			GuestUsername: "ana",
			CheckIn:       checkIn,
			CheckOut:      checkIn.AddDate(0, 0, 3),
			GuestsCount:   2,
			TotalPrice:    decimal.RequireFromString("300"),
			Status:        models.StatusConfirmed,
			CreatedAt:     checkIn.AddDate(0, 0, -10),
		},
	}

	data, err := ReservationsWorkbook(reservations, time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "Sea View Flat", rows[1][1])
	assert.Equal(t, "2024-06-01", rows[1][4])
	assert.Equal(t, "3", rows[1][6])
	assert.Equal(t, "300.00", rows[1][8])
	assert.Equal(t, models.StatusConfirmed, rows[1][9])
}

func TestReservationsWorkbook_Empty(t *testing.T) {
	data, err := ReservationsWorkbook(nil, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
