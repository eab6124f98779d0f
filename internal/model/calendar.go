// internal/model/calendar.go
package model

import "time"

type Granularity string

const (
	GranularityMonth Granularity = "month"
	GranularityWeek  Granularity = "week"
	GranularityDay   Granularity = "day"
)

// CalendarBucket is one calendar cell. It is computed per query and never stored.
type CalendarBucket struct {
	Date  time.Time `json:"date"`
	Posts []*Post   `json:"posts"`
}

type Upcoming struct {
	Today    []*Post `json:"today"`
	Tomorrow []*Post `json:"tomorrow"`
	Later    []*Post `json:"later"`
}
