package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"swapwatch/internal/trade"
)

// flowPoint is the running buy/sell volume of a token after one trade.
type flowPoint struct {
	At     time.Time
	Bought decimal.Decimal
	Sold   decimal.Decimal
}

// Export renders a token's trade history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Token == "" {
		return errors.New("--token is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	trades, err := c.store.ListTradesByToken(ctx, opts.Token)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		a.Logger.Info().Str("token", opts.Token).Msg("no trades found for token")
		return nil
	}

	a.Logger.Info().Int("trades", len(trades)).Str("token", opts.Token).Msg("exporting trades")

	if opts.CSVPath != "" {
		if err := writeTradesCSV(opts.CSVPath, opts.Token, trades); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		points := downsamplePoints(cumulativeFlow(opts.Token, trades), opts.MaxPoints)
		if err := writeFlowPNG(opts.PNGPath, opts.Token, points); err != nil {
			return err
		}
	}

	return nil
}

// cumulativeFlow accumulates bought and sold amounts of token in trade order.
func cumulativeFlow(token string, trades []trade.Trade) []flowPoint {
	points := make([]flowPoint, 0, len(trades))
	bought, sold := decimal.Zero, decimal.Zero
	for _, t := range trades {
		switch t.Side(token) {
		case trade.SideBuy:
			bought = bought.Add(t.TokenOutAmount)
		case trade.SideSell:
			sold = sold.Add(t.TokenInAmount)
		default:
			continue
		}
		points = append(points, flowPoint{At: time.Unix(t.Timestamp, 0).UTC(), Bought: bought, Sold: sold})
	}
	return points
}

func downsamplePoints(points []flowPoint, max int) []flowPoint {
	if max <= 1 || len(points) <= max {
		return points
	}

	result := make([]flowPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeTradesCSV(path, token string, trades []trade.Trade) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ts", "time_utc", "signature", "account", "side", "token_in", "amount_in", "token_out", "amount_out", "description"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		record := []string{
			strconv.FormatInt(t.Timestamp, 10),
			time.Unix(t.Timestamp, 0).UTC().Format(time.RFC3339),
			t.Signature,
			t.Account,
			string(t.Side(token)),
			t.TokenInAddress,
			t.TokenInAmount.String(),
			t.TokenOutAddress,
			t.TokenOutAmount.String(),
			t.DescriptionOrEmpty(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeFlowPNG(path, token string, points []flowPoint) error {
	if len(points) < 2 {
		return errors.New("at least two buy/sell trades are needed to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	bought := make([]float64, len(points))
	sold := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.At
		bought[i] = p.Bought.InexactFloat64()
		sold[i] = p.Sold.InexactFloat64()
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  "Cumulative flow " + shorten(token),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Tokens",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Bought",
				XValues: x,
				YValues: bought,
			},
			chart.TimeSeries{
				Name:    "Sold",
				XValues: x,
				YValues: sold,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
