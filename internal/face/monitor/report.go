package monitor

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/bloomsight/blinkbloom/internal/facedb"
)

// Reporter renders per-session HTML reports from the session store using
// go-echarts: the recorded gaze trace, blink timeline, and direction change
// history on one page.
type Reporter struct {
	db *facedb.DB
}

// NewReporter creates a reporter reading from the given store.
func NewReporter(db *facedb.DB) *Reporter {
	return &Reporter{db: db}
}

// Caps on how much of a session one report pulls from the store.
const (
	maxTracePoints = 5000
	maxEventRows   = 500
)

// WriteSessionReport renders the full report page for one session.
func (rp *Reporter) WriteSessionReport(w io.Writer, sessionID string) error {
	session, err := rp.db.GetSession(sessionID)
	if err != nil {
		return err
	}
	summary, err := rp.db.Summary(sessionID)
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Session %s", session.ID)

	gazeChart, err := rp.gazeTraceChart(session.ID)
	if err != nil {
		return err
	}
	blinkChart, err := rp.blinkChart(session.ID, summary.Blinks)
	if err != nil {
		return err
	}
	directionChart, err := rp.directionChart(session.ID)
	if err != nil {
		return err
	}

	page.AddCharts(gazeChart, blinkChart, directionChart)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// gazeTraceChart draws the recorded screen-space gaze trace as a scatter,
// colored by time so the path direction is readable.
func (rp *Reporter) gazeTraceChart(sessionID string) (*charts.Scatter, error) {
	trace, err := rp.db.GazeTrace(sessionID, maxTracePoints)
	if err != nil {
		return nil, err
	}

	data := make([]opts.ScatterData, 0, len(trace))
	for i, pt := range trace {
		data = append(data, opts.ScatterData{Value: []interface{}{pt.ScreenX, pt.ScreenY, i}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Gaze Trace",
			Subtitle: fmt.Sprintf("session=%s points=%d", sessionID, len(data)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Screen X (px)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Screen Y (px)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:      opts.Bool(true),
			Min:       0,
			Max:       float32(len(data)),
			Dimension: "2",
			InRange:   &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("gaze", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter, nil
}

// blinkChart draws blink events over time as a bar chart of closed-frame
// counts.
func (rp *Reporter) blinkChart(sessionID string, total int) (*charts.Bar, error) {
	blinks, err := rp.db.RecentBlinks(sessionID, maxEventRows)
	if err != nil {
		return nil, err
	}

	// RecentBlinks is newest first; the chart reads left to right in time.
	x := make([]string, 0, len(blinks))
	y := make([]opts.BarData, 0, len(blinks))
	for i := len(blinks) - 1; i >= 0; i-- {
		x = append(x, blinks[i].At.Format(time.TimeOnly))
		y = append(y, opts.BarData{Value: blinks[i].ClosedFrames})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Blinks",
			Subtitle: fmt.Sprintf("session=%s total=%d", sessionID, total),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Closed frames"}),
	)
	bar.SetXAxis(x).AddSeries("blinks", y)
	return bar, nil
}

// directionChart draws direction changes over time, with stability
// confidence on the y axis and the target direction as the label.
func (rp *Reporter) directionChart(sessionID string) (*charts.Bar, error) {
	changes, err := rp.db.RecentDirectionChanges(sessionID, maxEventRows)
	if err != nil {
		return nil, err
	}

	x := make([]string, 0, len(changes))
	y := make([]opts.BarData, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		c := changes[i]
		x = append(x, fmt.Sprintf("%s %s", c.At.Format(time.TimeOnly), c.To))
		y = append(y, opts.BarData{Value: c.StabilityConfidence})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Direction Changes",
			Subtitle: fmt.Sprintf("session=%s changes=%d", sessionID, len(changes)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Stability confidence", Max: 1}),
	)
	bar.SetXAxis(x).AddSeries("direction", y)
	return bar, nil
}
