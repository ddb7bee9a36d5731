// Package report exports a raffle's ledger for administrators.
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"github.com/skip2/go-qrcode"

	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/utils"
)

const (
	width        = 80
	numberCol    = 10
	customerCol  = 50
	statusCol    = 15
	maxNameRunes = 48
)

// Text renders the fixed-width plain text report of a raffle.
func Text(raffle *models.Raffle, rows []models.Selection) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(strings.Repeat("=", width))
	line(fmt.Sprintf("RAFFLE REPORT: %s (#%s)", raffle.Name, raffle.RaffleNumber))
	draw := raffle.DrawDate.Format(utils.DateLayout)
	if raffle.DrawTime != "" {
		draw += " " + raffle.DrawTime
	}
	line("Draw date: " + draw)
	line(strings.Repeat("=", width))
	line(pad("NUMBER", numberCol) + pad("CUSTOMER", customerCol) + pad("STATUS", statusCol))
	line(strings.Repeat("-", width))

	active := 0
	for _, r := range rows {
		status := "ACTIVE"
		if r.IsCanceled {
			status = "CANCELED"
		} else {
			active++
		}
		line(pad(r.Number, numberCol) + pad(truncate(r.CustomerName, maxNameRunes), customerCol) + pad(status, statusCol))
	}

	line(strings.Repeat("-", width))
	line(fmt.Sprintf("Active numbers: %d", active))
	line(fmt.Sprintf("Canceled numbers: %d", len(rows)-active))
	line(fmt.Sprintf("Occupied numbers (active + canceled): %d", len(rows)))
	b.WriteString(strings.Repeat("=", width))
	return b.String()
}

// TextFilename is the download name of the text report.
func TextFilename(raffle *models.Raffle) string {
	return fmt.Sprintf("raffle_report_%s.txt", safeName(raffle.RaffleNumber))
}

// CSVFilename is the download name of the CSV export.
func CSVFilename(raffle *models.Raffle) string {
	return fmt.Sprintf("raffle_%s_selections.csv", safeName(raffle.RaffleNumber))
}

type csvRow struct {
	Number              string `csv:"number"`
	CustomerName        string `csv:"customer_name"`
	CustomerPhone       string `csv:"customer_phone"`
	Status              string `csv:"status"`
	PaymentMethod       string `csv:"payment_method"`
	PaymentContactName  string `csv:"payment_contact_name"`
	PaymentContactPhone string `csv:"payment_contact_phone"`
	CreatedAt           string `csv:"created_at"`
}

// CSV exports one line per selection.
func CSV(rows []models.Selection) ([]byte, error) {
	out := make([]*csvRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, &csvRow{
			Number:              r.Number,
			CustomerName:        r.CustomerName,
			CustomerPhone:       r.CustomerPhone,
			Status:              string(r.Status()),
			PaymentMethod:       r.PaymentMethod,
			PaymentContactName:  r.PaymentContactName,
			PaymentContactPhone: r.PaymentContactPhone,
			CreatedAt:           r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return gocsv.MarshalBytes(&out)
}

// ShareQR encodes the public URL of a raffle as a PNG QR code.
func ShareQR(url string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(url, qrcode.Medium, size)
}

// ShareURL is the public address of a raffle.
func ShareURL(baseURL string, raffleID int64) string {
	return fmt.Sprintf("%s/raffles/%d", strings.TrimRight(baseURL, "/"), raffleID)
}

func pad(s string, n int) string {
	if c := utf8.RuneCountInString(s); c < n {
		return s + strings.Repeat(" ", n-c)
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' || r == '"' {
			return '_'
		}
		return r
	}, s)
}
