// Package ticker parses Kalshi temperature-market tickers.
//
// Ticker format: SERIES-DDMMMDD-STRIKE, e.g. KXHIGHTLV-26JAN26-B62.5.
// The date part is DDMMMDD where the day of month appears twice (the
// trailing two digits are NOT a year); the year is inferred from the
// current date, since these markets only exist for today/tomorrow.
package ticker

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformed is returned for tickers that do not follow the
// SERIES-DDMMMDD-STRIKE encoding.
var ErrMalformed = errors.New("ticker: malformed ticker")

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Series returns the series prefix of a ticker (e.g. KXHIGHTDC).
func Series(ticker string) (string, error) {
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 || parts[0] == "" {
		return "", errors.Wrapf(ErrMalformed, "no series in %q", ticker)
	}
	return parts[0], nil
}

// SettlementDate returns the market's settlement day at midnight local
// time. The year is inferred from now, rolling over to the next year
// when the ticker names January while now is December.
func SettlementDate(tkr string, now time.Time) (time.Time, error) {
	parts := strings.Split(tkr, "-")
	if len(parts) < 2 {
		return time.Time{}, errors.Wrapf(ErrMalformed, "no date part in %q", tkr)
	}
	datePart := parts[1]
	if len(datePart) < 7 {
		return time.Time{}, errors.Wrapf(ErrMalformed, "short date part %q in %q", datePart, tkr)
	}

	// Use the SECOND day value (trailing digits); the leading two digits
	// have proven unreliable in the venue's encoding.
	day, err := strconv.Atoi(datePart[5:7])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, errors.Wrapf(ErrMalformed, "bad day %q in %q", datePart[5:7], tkr)
	}
	month, ok := months[strings.ToUpper(datePart[2:5])]
	if !ok {
		return time.Time{}, errors.Wrapf(ErrMalformed, "bad month %q in %q", datePart[2:5], tkr)
	}

	year := now.Year()
	if month == time.January && now.Month() == time.December {
		year++
	}
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), nil
}

// DateKey returns the settlement date formatted as YYYY-MM-DD, the key
// used to group trades in the ledger.
func DateKey(tkr string, now time.Time) (string, error) {
	d, err := SettlementDate(tkr, now)
	if err != nil {
		return "", err
	}
	return d.Format("2006-01-02"), nil
}

// CloseTime returns the market close, fixed at 23:59 on the settlement
// day. Kalshi closes temperature markets at 11:59 PM ET; local time is
// used as an approximation since the catalog carries no timezones.
func CloseTime(tkr string, now time.Time) (time.Time, error) {
	d, err := SettlementDate(tkr, now)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 0, 0, d.Location()), nil
}

// HoursUntilClose returns the hours remaining until market close. The
// result is negative once the close has passed.
func HoursUntilClose(tkr string, now time.Time) (float64, error) {
	close, err := CloseTime(tkr, now)
	if err != nil {
		return 0, err
	}
	return close.Sub(now).Hours(), nil
}

// Strikes parses the bucket bounds from the strike suffix.
//
//	T49   -> floor=nil, cap=49   ("49 or below", threshold at or under 50)
//	T56   -> floor=56,  cap=nil  ("57 or above")
//	B49.5 -> floor=49,  cap=50   (one-degree bucket)
func Strikes(tkr string) (floor, cap *int, err error) {
	parts := strings.Split(tkr, "-")
	if len(parts) < 3 {
		return nil, nil, errors.Wrapf(ErrMalformed, "no strike part in %q", tkr)
	}
	strikePart := parts[len(parts)-1]
	if len(strikePart) < 2 {
		return nil, nil, errors.Wrapf(ErrMalformed, "short strike %q in %q", strikePart, tkr)
	}

	value, perr := strconv.ParseFloat(strikePart[1:], 64)
	if perr != nil {
		return nil, nil, errors.Wrapf(ErrMalformed, "bad strike %q in %q", strikePart, tkr)
	}

	switch strikePart[0] {
	case 'T':
		n := int(value)
		if value <= 50 {
			return nil, &n, nil
		}
		return &n, nil, nil
	case 'B':
		f := int(value)
		c := f + 1
		return &f, &c, nil
	}
	return nil, nil, errors.Wrapf(ErrMalformed, "unknown strike prefix %q in %q", strikePart, tkr)
}
