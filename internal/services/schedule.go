package services

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"santa-tracker-backend/internal/models"
)

// VisitSlot is the time budgeted for one family visit
const VisitSlot = 5 * time.Minute

const scheduleTolerance = 2 * time.Minute

// Schedule states
const (
	ScheduleAhead  = "ahead"
	ScheduleOnTime = "on-time"
	ScheduleBehind = "behind"
)

// Schedule tells viewers whether the tour keeps its planned pace
type Schedule struct {
	Status            string  `json:"status"`
	MinutesDifference float64 `json:"minutes_difference"`
	Message           string  `json:"message"`
}

// ComputeSchedule compares the time elapsed since the tour started with the
// time budgeted for the visits already handled.
func ComputeSchedule(startedAt time.Time, handled int, now time.Time) Schedule {
	elapsed := now.Sub(startedAt)
	expected := time.Duration(handled) * VisitSlot
	diff := elapsed - expected
	minutes := diff.Minutes()

	switch {
	case diff.Abs() <= scheduleTolerance:
		return Schedule{
			Status:            ScheduleOnTime,
			MinutesDifference: minutes,
			Message:           "Santa's right on schedule! 🎅",
		}
	case diff < 0:
		return Schedule{
			Status:            ScheduleAhead,
			MinutesDifference: -minutes,
			Message:           fmt.Sprintf("Santa's running ahead by %d minutes! 🎉", int(math.Round(-minutes))),
		}
	default:
		return Schedule{
			Status:            ScheduleBehind,
			MinutesDifference: minutes,
			Message:           fmt.Sprintf("Santa's running a bit behind by %d minutes... 🕐", int(math.Round(minutes))),
		}
	}
}

// ETA is the estimated wait before Santa reaches one family
type ETA struct {
	VisitID         string `json:"visit_id"`
	FamilyID        string `json:"family_id"`
	VisitsRemaining int    `json:"visits_remaining"`
	Minutes         int    `json:"minutes"`
	ArrivalAt       string `json:"arrival_at"`
	Text            string `json:"text"`
}

// EstimateArrivals computes an ETA for every ON_WAY or PENDING visit. The wait
// counts queue positions among open visits from the one in progress, so sparse
// orders left by reorder or requeue do not inflate it. Visits queued before
// the current one are reached after the wrap-around.
func EstimateArrivals(visits []*models.Visit, now time.Time) []ETA {
	open := make([]*models.Visit, 0, len(visits))
	for _, v := range visits {
		if !v.Status.Terminal() {
			open = append(open, v)
		}
	}
	slices.SortStableFunc(open, func(a, b *models.Visit) int {
		return cmp.Compare(a.Order, b.Order)
	})

	current := 0
	for i, v := range open {
		if v.Status.Active() {
			current = i
			break
		}
	}

	etas := make([]ETA, 0, len(open))
	for i, v := range open {
		if v.Status == models.VisitVisiting {
			continue
		}
		remaining := (i - current + len(open)) % len(open)
		wait := time.Duration(remaining) * VisitSlot
		etas = append(etas, ETA{
			VisitID:         v.ID,
			FamilyID:        v.FamilyID,
			VisitsRemaining: remaining,
			Minutes:         int(wait.Minutes()),
			ArrivalAt:       now.Add(wait).UTC().Format(time.RFC3339),
			Text:            FormatETA(wait),
		})
	}
	return etas
}

// FormatETA renders a wait as "1 minute", "2 hours" or "1 hour and 5 minutes"
func FormatETA(d time.Duration) string {
	total := int(d.Round(time.Minute).Minutes())
	if total < 60 {
		return plural(total, "minute")
	}
	hours, minutes := total/60, total%60
	if minutes == 0 {
		return plural(hours, "hour")
	}
	return plural(hours, "hour") + " and " + plural(minutes, "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
