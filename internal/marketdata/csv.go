package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// csvDate parses the bare date format used in exported OHLCV files.
type csvDate struct {
	time.Time
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (d *csvDate) UnmarshalCSV(s string) error {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parsing date %q: %w", s, err)
	}
	d.Time = t.UTC()
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (d csvDate) MarshalCSV() (string, error) {
	return d.Format("2006-01-02"), nil
}

type csvBar struct {
	Date   csvDate `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// CSVProvider loads daily OHLCV history from <dir>/<SYMBOL>.csv files with a
// date,open,high,low,close,volume header row.
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider rooted at the given directory.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// GetPriceHistory reads and filters the symbol's CSV file to [start, end].
func (p *CSVProvider) GetPriceHistory(_ context.Context, symbol string, start, end time.Time) (*PriceHistory, error) {
	path := filepath.Join(p.dir, strings.ToUpper(symbol)+".csv")
	f, err := os.Open(path) // #nosec G304 -- path is rooted at the configured data directory
	if err != nil {
		return nil, fmt.Errorf("opening price file for %s: %w", symbol, err)
	}
	defer func() { _ = f.Close() }()

	var rows []csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing price file for %s: %w", symbol, err)
	}

	bars := make([]PriceBar, 0, len(rows))
	for _, row := range rows {
		d := row.Date.Time
		if d.Before(start) || d.After(end) {
			continue
		}
		bars = append(bars, PriceBar{
			Date:   d,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s between %s and %s: %w",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return NewPriceHistory(symbol, bars), nil
}
