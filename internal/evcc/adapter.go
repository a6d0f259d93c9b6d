package evcc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// HomeProvider is the provider name stamped on home charging rows.
const HomeProvider = "EVCC (Home)"

// maxSessionExcerptLen bounds the stored session payload.
const maxSessionExcerptLen = 1000

// Adapter converts evcc sessions into receipts. Sessions without a
// reported price are costed at the configured home electricity rate.
type Adapter struct {
	homeRate float64
	currency string
}

func NewAdapter(homeRate float64, currency string) *Adapter {
	return &Adapter{homeRate: homeRate, currency: currency}
}

// Receipt converts one session, or returns nil for sessions that
// never delivered energy (aborted or still-plugged sessions).
func (a *Adapter) Receipt(session Session) *receipt.Receipt {
	if session.ChargedEnergy <= 0 {
		slog.Debug("Skipping evcc session without energy", "id", session.ID)
		return nil
	}

	cost := session.ChargedEnergy * a.homeRate
	if session.Price != nil {
		cost = *session.Price
	}

	return &receipt.Receipt{
		Provider:      HomeProvider,
		Timestamp:     sessionTime(session),
		Location:      sessionLocation(session),
		Cost:          cost,
		Currency:      a.currency,
		EnergyKWh:     session.ChargedEnergy,
		Duration:      formatDuration(session.ChargeDuration),
		SourceExcerpt: sessionExcerpt(session),
		OriginSubject: sessionSubject(session),
		SourceType:    receipt.SourceHome,
	}
}

// sessionTime prefers the finish time over the start time; both are
// RFC 3339.
func sessionTime(session Session) time.Time {
	for _, value := range []string{session.Finished, session.Created} {
		if value == "" {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return parsed
		}
	}
	return time.Now()
}

func sessionLocation(session Session) string {
	parts := []string{"Home Charging"}
	if session.Loadpoint != "" {
		parts = append(parts, "("+session.Loadpoint+")")
	}
	if session.Vehicle != "" {
		parts = append(parts, "- "+session.Vehicle)
	}
	return strings.Join(parts, " ")
}

func formatDuration(ns int64) string {
	if ns <= 0 {
		return ""
	}
	d := time.Duration(ns)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func sessionSubject(session Session) string {
	subject := fmt.Sprintf("EVCC Home Charging Session #%d", session.ID)
	if session.SolarPercentage != nil {
		subject += fmt.Sprintf(" (Solar: %.1f%%)", *session.SolarPercentage)
	}
	if session.PricePerKWh != nil {
		subject += fmt.Sprintf(" @$%.4f/kWh", *session.PricePerKWh)
	}
	return subject
}

func sessionExcerpt(session Session) string {
	data, err := json.Marshal(session)
	if err != nil {
		return ""
	}
	excerpt := string(data)
	if len(excerpt) > maxSessionExcerptLen {
		excerpt = excerpt[:maxSessionExcerptLen]
	}
	return excerpt
}
