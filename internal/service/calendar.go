package service

import (
	"sort"
	"time"

	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

const (
	monthGridDays = 42
	weekDays      = 7
)

// CalendarRange returns the first day of the grid for anchor and the number of days
// it spans. Days are civil dates in anchor's location; months start on the Sunday on
// or before the 1st and always span six weeks.
func CalendarRange(g model.Granularity, anchor time.Time) (time.Time, int, error) {
	y, m, d := anchor.Date()
	loc := anchor.Location()
	switch g {
	case model.GranularityMonth:
		first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return time.Date(y, m, 1-int(first.Weekday()), 0, 0, 0, 0, loc), monthGridDays, nil
	case model.GranularityWeek:
		return time.Date(y, m, d-int(anchor.Weekday()), 0, 0, 0, 0, loc), weekDays, nil
	case model.GranularityDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), 1, nil
	default:
		return time.Time{}, 0, appErrors.NewValidationError("unsupported granularity")
	}
}

// Project buckets posts by the civil day of their scheduled time. Posts without a
// scheduled time or outside the grid are left out. Each bucket is ordered by
// scheduled time, then id.
func Project(posts []*model.Post, g model.Granularity, anchor time.Time) ([]model.CalendarBucket, error) {
	start, days, err := CalendarRange(g, anchor)
	if err != nil {
		return nil, err
	}
	loc := anchor.Location()

	buckets := make([]model.CalendarBucket, days)
	index := make(map[civilDay]int, days)
	for i := range buckets {
		date := start.AddDate(0, 0, i)
		buckets[i] = model.CalendarBucket{Date: date, Posts: []*model.Post{}}
		index[dayOf(date, loc)] = i
	}

	for _, p := range posts {
		if p == nil || p.ScheduledAt == nil {
			continue
		}
		if i, ok := index[dayOf(*p.ScheduledAt, loc)]; ok {
			buckets[i].Posts = append(buckets[i].Posts, p)
		}
	}
	for i := range buckets {
		sortBySchedule(buckets[i].Posts)
	}
	return buckets, nil
}

// Upcoming partitions scheduled posts by civil day relative to now, in now's
// location. Posts before the start of today are dropped.
func Upcoming(posts []*model.Post, now time.Time) model.Upcoming {
	loc := now.Location()
	y, m, d := now.Date()
	startOfToday := time.Date(y, m, d, 0, 0, 0, 0, loc)
	today := dayOf(startOfToday, loc)
	tomorrow := dayOf(time.Date(y, m, d+1, 0, 0, 0, 0, loc), loc)

	out := model.Upcoming{Today: []*model.Post{}, Tomorrow: []*model.Post{}, Later: []*model.Post{}}
	for _, p := range posts {
		if p == nil || p.ScheduledAt == nil || p.ScheduledAt.Before(startOfToday) {
			continue
		}
		switch dayOf(*p.ScheduledAt, loc) {
		case today:
			out.Today = append(out.Today, p)
		case tomorrow:
			out.Tomorrow = append(out.Tomorrow, p)
		default:
			out.Later = append(out.Later, p)
		}
	}
	sortBySchedule(out.Today)
	sortBySchedule(out.Tomorrow)
	sortBySchedule(out.Later)
	return out
}

type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time, loc *time.Location) civilDay {
	y, m, d := t.In(loc).Date()
	return civilDay{y, m, d}
}

func sortBySchedule(posts []*model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].ScheduledAt, posts[j].ScheduledAt
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return posts[i].ID < posts[j].ID
	})
}
