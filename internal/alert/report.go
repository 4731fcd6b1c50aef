package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/wind-alert/internal/accuracy"
)

// NoHazardMessage is sent when no source forecasts a hazard and none was observed.
const NoHazardMessage = "No hazardous wind conditions forecast."

const reportTimeLayout = "02/01/2006 15:04"

func (a *Aggregator) compose(res Result) string {
	var b strings.Builder

	forecastHazards := res.Hazards()
	if forecastHazards == 0 {
		b.WriteString(NoHazardMessage)
	} else {
		b.WriteString(a.header())
		for _, s := range res.Sources {
			if len(s.Upcoming) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n\n%s (accuracy %.1f%%):", s.SourceID, accuracy.Percentage(s.Accuracy))
			for _, w := range s.Upcoming {
				fmt.Fprintf(&b, "\n  - %s: %.1f m/s, %s", a.localTime(w.Prediction.Timestamp), w.Prediction.Speed, w.Zone)
			}
		}
		hours := distinctHours(res.Sources)
		fmt.Fprintf(&b, "\n\nWARNING: %d hazardous %s forecast in the next %s.",
			hours, pluralize(hours, "hour"), describeHorizon(a.cfg.Horizon))
	}

	if len(res.Observed) > 0 {
		fmt.Fprintf(&b, "\n\nObserved in the last %.0fh:", a.cfg.ObservationWindow.Hours())
		for _, o := range res.Observed {
			fmt.Fprintf(&b, "\n  - %s: %.1f m/s, %s", a.localTime(o.Timestamp), o.Speed, a.deps.Matcher.ClassifyZone(o.Direction))
		}
	}
	return b.String()
}

func (a *Aggregator) header() string {
	if a.cfg.PlaceName == "" {
		return fmt.Sprintf("Wind alert (%s, %s)", a.cfg.Latitude, a.cfg.Longitude)
	}
	return fmt.Sprintf("Wind alert for %s (%s, %s)", a.cfg.PlaceName, a.cfg.Latitude, a.cfg.Longitude)
}

func (a *Aggregator) localTime(t time.Time) string {
	return t.In(a.cfg.Location).Format(reportTimeLayout)
}

// distinctHours counts upcoming hazard timestamps, so an hour flagged by several
// sources counts once.
func distinctHours(sources []SourceReport) int {
	seen := make(map[int64]struct{})
	for _, s := range sources {
		for _, w := range s.Upcoming {
			seen[w.Prediction.Timestamp.Unix()] = struct{}{}
		}
	}
	return len(seen)
}

func describeHorizon(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%.0f hours", d.Hours())
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
