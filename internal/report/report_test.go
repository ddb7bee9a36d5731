package report

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerm1977/rifas/internal/models"
)

func sampleRaffle() *models.Raffle {
	return &models.Raffle{
		ID:           1,
		RaffleNumber: "015",
		Name:         "Canasta navideña",
		DrawDate:     time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC),
		DrawTime:     "19:30",
	}
}

func sampleRows() []models.Selection {
	return []models.Selection{
		{Number: "05", CustomerName: "Ana", CustomerPhone: "8888-0000", PaymentMethod: "SINPE"},
		{Number: "17", CustomerName: "Ana", CustomerPhone: "8888-0000", PaymentMethod: "SINPE", IsCanceled: true},
		{Number: "42", CustomerName: strings.Repeat("Ñ", 60), CustomerPhone: "7777-0000", PaymentMethod: models.DefaultPaymentMethod},
	}
}

func TestText_Layout(t *testing.T) {
	out := Text(sampleRaffle(), sampleRows())
	lines := strings.Split(out, "\n")

	assert.Equal(t, strings.Repeat("=", 80), lines[0])
	assert.Equal(t, "RAFFLE REPORT: Canasta navideña (#015)", lines[1])
	assert.Equal(t, "Draw date: 2026-12-24 19:30", lines[2])
	assert.Equal(t, "NUMBER    CUSTOMER                                          STATUS         ", lines[4])

	assert.Equal(t, "05        Ana                                               ACTIVE         ", lines[6])
	assert.Equal(t, "17        Ana                                               CANCELED       ", lines[7])
	assert.Equal(t, "42        "+strings.Repeat("Ñ", 48)+"  ACTIVE         ", lines[8])

	assert.Contains(t, out, "Active numbers: 2")
	assert.Contains(t, out, "Canceled numbers: 1")
	assert.Contains(t, out, "Occupied numbers (active + canceled): 3")
	assert.Equal(t, strings.Repeat("=", 80), lines[len(lines)-1])
}

func TestText_Empty(t *testing.T) {
	out := Text(sampleRaffle(), nil)
	assert.Contains(t, out, "Occupied numbers (active + canceled): 0")
}

func TestCSV(t *testing.T) {
	raw, err := CSV(sampleRows())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "number,customer_name,customer_phone,status,payment_method,payment_contact_name,payment_contact_phone,created_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "17,Ana,8888-0000,canceled,SINPE"))
}

func TestShareQR_IsPNG(t *testing.T) {
	png1, err := ShareQR(ShareURL("https://rifas.example.com/", 9), 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(png1))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, "https://rifas.example.com/raffles/9", ShareURL("https://rifas.example.com/", 9))
}

func TestFilenames(t *testing.T) {
	r := sampleRaffle()
	r.RaffleNumber = "A/7 x"
	assert.Equal(t, "raffle_report_A_7_x.txt", TextFilename(r))
	assert.Equal(t, "raffle_A_7_x_selections.csv", CSVFilename(r))
}
