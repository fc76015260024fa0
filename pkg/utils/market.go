package utils

import (
	"fmt"
	"time"

	"trading-agent/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// DateLayout is the layout of ledger and journal date keys.
const DateLayout = "2006-01-02"

// nseHolidays lists NSE equity trading holidays that fall on weekdays.
var nseHolidays = map[string]string{
	"2025-02-26": "Mahashivratri",
	"2025-03-14": "Holi",
	"2025-03-31": "Id-Ul-Fitr",
	"2025-04-10": "Mahavir Jayanti",
	"2025-04-14": "Ambedkar Jayanti",
	"2025-04-18": "Good Friday",
	"2025-05-01": "Maharashtra Day",
	"2025-08-15": "Independence Day",
	"2025-08-27": "Ganesh Chaturthi",
	"2025-10-02": "Gandhi Jayanti",
	"2025-10-21": "Diwali Laxmi Pujan",
	"2025-10-22": "Balipratipada",
	"2025-11-05": "Guru Nanak Jayanti",
	"2025-12-25": "Christmas",

	"2026-01-26": "Republic Day",
	"2026-03-17": "Holi",
	"2026-03-30": "Ram Navami",
	"2026-04-02": "Mahavir Jayanti",
	"2026-04-03": "Good Friday",
	"2026-04-14": "Ambedkar Jayanti",
	"2026-05-01": "Maharashtra Day",
	"2026-06-05": "Bakri Id",
	"2026-07-06": "Muharram",
	"2026-08-15": "Independence Day",
	"2026-08-19": "Ganesh Chaturthi",
	"2026-10-02": "Gandhi Jayanti",
	"2026-10-20": "Dussehra",
	"2026-10-21": "Diwali Laxmi Pujan",
	"2026-11-05": "Guru Nanak Jayanti",
	"2026-12-25": "Christmas",
}

// DateKey returns the IST calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.In(IndiaLocation).Format(DateLayout)
}

// Holiday returns the holiday name when t falls on an NSE holiday.
func Holiday(t time.Time) (string, bool) {
	name, ok := nseHolidays[DateKey(t)]
	return name, ok
}

// IsTradingDay reports whether t is an IST weekday that is not an NSE holiday.
func IsTradingDay(t time.Time) bool {
	local := t.In(IndiaLocation)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	_, holiday := Holiday(local)
	return !holiday
}

// Window is a half-open intraday interval [Start, End) in IST minutes after midnight.
type Window struct {
	Start int
	End   int
}

// DefaultWindow is the 09:30-15:15 entry window.
var DefaultWindow = Window{Start: 9*60 + 30, End: 15*60 + 15}

// Contains reports whether t falls inside the window on its IST clock.
func (w Window) Contains(t time.Time) bool {
	local := t.In(IndiaLocation)
	m := local.Hour()*60 + local.Minute()
	return m >= w.Start && m < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d IST", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// TradingOpen reports whether t is a trading day and inside the window.
func TradingOpen(t time.Time, w Window) bool {
	return IsTradingDay(t) && w.Contains(t)
}

// GetMarketStatus returns the exchange status at now.
func GetMarketStatus(now time.Time) models.MarketStatus {
	local := now.In(IndiaLocation)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return models.MarketClosed
	}
	if _, ok := Holiday(local); ok {
		return models.MarketHoliday
	}

	timeMinutes := local.Hour()*60 + local.Minute()

	// Pre-open: 9:00 - 9:15
	if timeMinutes >= 540 && timeMinutes < 555 {
		return models.MarketPreOpen
	}
	// Continuous session: 9:15 - 15:30
	if timeMinutes >= 555 && timeMinutes < 930 {
		return models.MarketOpen
	}

	return models.MarketClosed
}

// NextTradingDay returns the first trading day strictly after t, at midnight IST.
func NextTradingDay(t time.Time) time.Time {
	local := t.In(IndiaLocation)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, IndiaLocation).AddDate(0, 0, 1)
	for !IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
