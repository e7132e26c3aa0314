package workflow

import (
	"time"

	"erpfetch/internal/notifications"
	"erpfetch/internal/report"
)

// Summary tallies a run.
type Summary struct {
	RunID        string
	Orders       int
	Items        int
	Succeeded    int
	NotFound     int
	Transient    int
	Fatal        int
	Skipped      int
	Unrecognized int
	Duration     time.Duration
}

// Failed counts items whose handler did not trigger a download.
func (s Summary) Failed() int {
	return s.NotFound + s.Transient + s.Fatal
}

func (s *Summary) tally(out report.Outcome) {
	switch out.Status {
	case report.StatusSuccess:
		s.Succeeded++
	case report.StatusItemNotFound:
		s.NotFound++
	case report.StatusTransient:
		s.Transient++
	default:
		s.Fatal++
	}
}

func (s Summary) stats() notifications.RunStats {
	return notifications.RunStats{
		Orders:    s.Orders,
		Succeeded: s.Succeeded,
		Failed:    s.Failed(),
		Skipped:   s.Skipped + s.Unrecognized,
		Duration:  s.Duration,
	}
}
