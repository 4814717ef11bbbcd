package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// standardParser accepts 5-field expressions and descriptors like "@hourly",
// the same grammar as cron.ParseStandard.
var standardParser = cron.NewParser(cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

func (t *TriggerInfo) String() string {
	if t.Last.IsZero() {
		return fmt.Sprintf("%q next at %s (in %s)", t.Expression, t.Next.Format(time.RFC3339), t.TimeUntilNext.Round(time.Second))
	}
	return fmt.Sprintf("%q next at %s (in %s), last at %s",
		t.Expression,
		t.Next.Format(time.RFC3339),
		t.TimeUntilNext.Round(time.Second),
		t.Last.Format(time.RFC3339))
}

// Parse parses a standard cron expression.
func Parse(cronExpr string) (cron.Schedule, error) {
	schedule, err := standardParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// GetTriggerInfo reports the closest trigger times around refTime. Last is
// zero when the expression did not fire within the previous year.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return nil, err
	}

	nextTime := schedule.Next(refTime)

	var prevTime time.Time
	searchStart := refTime.Add(-time.Minute)

	for i := range 366 * 24 {
		checkTime := searchStart.Add(-time.Duration(i) * time.Hour)
		candidate := schedule.Next(checkTime)
		if candidate.After(refTime) {
			continue
		}
		// walk forward to the latest trigger not after refTime
		for {
			following := schedule.Next(candidate)
			if following.IsZero() || following.After(refTime) {
				break
			}
			candidate = following
		}
		prevTime = candidate
		break
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       nextTime,
		Last:       prevTime,
	}

	if !prevTime.IsZero() {
		info.TimeSinceLast = refTime.Sub(prevTime)
	}

	info.TimeUntilNext = nextTime.Sub(refTime)

	return info, nil
}
