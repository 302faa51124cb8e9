package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
	chart "github.com/wcharczuk/go-chart/v2"

	"mcwatch/internal/storage"
)

// ExportOptions selects the alert history window and output files.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	CSVPath   string
	PNGPath   string
	MaxPoints int
	GuildID   int64
}

// Export renders fired alert history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	all, err := store.LoadHistory(ctx)
	if err != nil {
		return err
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := time.Time{}
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	events := eventsBetween(all, from, to, opts.GuildID)
	if len(events) == 0 {
		a.Logger.Info().Msg("no alert events found for export window")
		return nil
	}

	downsampled := downsample(events, opts.MaxPoints)
	a.Logger.Info().Int("total", len(events)).Int("exported", len(downsampled)).Msg("exporting alert history")

	if opts.CSVPath != "" {
		if err := writeEventsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEventsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

// eventsBetween returns the events in [from, to] oldest first. A zero guild keeps every guild.
func eventsBetween(events []storage.AlertEvent, from, to time.Time, guildID int64) []storage.AlertEvent {
	out := lo.Filter(events, func(ev storage.AlertEvent, _ int) bool {
		if guildID != 0 && ev.GuildID != guildID {
			return false
		}
		return !ev.Time.Before(from) && !ev.Time.After(to)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func downsample[T any](items []T, max int) []T {
	if max <= 0 || len(items) <= max {
		return items
	}
	if max == 1 {
		return items[len(items)-1:]
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeEventsCSV(path string, events []storage.AlertEvent) error {
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

	header := []string{"ts", "rule_id", "token_id", "name", "symbol", "direction", "target", "observed", "guild_id", "channel_id", "creator_id"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, ev := range events {
		observed := ""
		if ev.Observed != nil {
			observed = formatFloat(*ev.Observed)
		}
		record := []string{
			ev.Time.UTC().Format(time.RFC3339),
			ev.RuleID,
			ev.TokenID,
			ev.Name,
			ev.Symbol,
			string(ev.Direction),
			formatFloat(ev.Target),
			observed,
			strconv.FormatInt(ev.GuildID, 10),
			strconv.FormatInt(ev.ChannelID, 10),
			strconv.FormatInt(ev.CreatorID, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeEventsPNG(path string, events []storage.AlertEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	// go-chart needs at least two points per series.
	if len(events) == 1 {
		events = append(events, events[0])
	}

	x := make([]time.Time, len(events))
	target := make([]float64, len(events))
	observed := make([]float64, len(events))
	for i, ev := range events {
		x[i] = ev.Time
		target[i] = ev.Target
		observed[i] = ev.Target
		if ev.Observed != nil {
			observed[i] = *ev.Observed
		}
	}

	capFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Market cap (USD)",
			ValueFormatter: capFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Target",
				XValues: x,
				YValues: target,
				Style:   chart.Style{StrokeWidth: chart.Disabled, DotWidth: 4},
			},
			chart.TimeSeries{
				Name:    "Observed",
				XValues: x,
				YValues: observed,
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
