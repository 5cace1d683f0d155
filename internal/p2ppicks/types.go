package p2ppicks

import (
	"fmt"
	"strings"
	"time"

	"pickvest/internal/pkg/apierr"
)

// Pick is one loan recommendation from the underwriting service.
type Pick struct {
	LoanID int64
	Grade  string
	Term   int
	Tier   string
}

// PicksSnapshot is one atomic fetch of the current picks together with the
// underwriter's publication timestamp.
type PicksSnapshot struct {
	Picks     []Pick
	Timestamp time.Time
	FetchedAt time.Time
}

// AsOf reports the snapshot timestamp used for change detection.
func (s PicksSnapshot) AsOf() time.Time { return s.Timestamp }

type pickWire struct {
	LoanID *int64 `json:"loan_id"`
	Grade  string `json:"grade"`
	Term   int    `json:"term"`
	Top    string `json:"top"`
}

type picksWire struct {
	Picks     []pickWire `json:"picks"`
	Timestamp string     `json:"timestamp"`
}

func (w picksWire) toSnapshot(now time.Time) (PicksSnapshot, error) {
	ts, err := parsePicksTime(w.Timestamp)
	if err != nil {
		return PicksSnapshot{}, apierr.NonRetryablef("picks: bad timestamp %q: %w", w.Timestamp, err)
	}
	snap := PicksSnapshot{Timestamp: ts, FetchedAt: now, Picks: make([]Pick, 0, len(w.Picks))}
	for i, pw := range w.Picks {
		if pw.LoanID == nil {
			return PicksSnapshot{}, apierr.NonRetryablef("picks: entry %d missing loan_id", i)
		}
		snap.Picks = append(snap.Picks, Pick{
			LoanID: *pw.LoanID,
			Grade:  strings.ToUpper(strings.TrimSpace(pw.Grade)),
			Term:   pw.Term,
			Tier:   strings.TrimSpace(pw.Top),
		})
	}
	return snap, nil
}

var picksTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parsePicksTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range picksTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
