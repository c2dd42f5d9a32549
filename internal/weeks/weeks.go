// Package weeks splits a date range into Monday-based calendar weeks.
//
// All dates are calendar dates: the time of day and location of the inputs
// are ignored and results are at midnight UTC. Monday is always the first day
// of the week, regardless of locale.
package weeks

import "time"

// Bucket is one calendar week, Start (a Monday) through End (the Sunday),
// both inclusive.
type Bucket struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar day of d falls in the bucket.
func (b Bucket) Contains(d time.Time) bool {
	d = civil(d)
	return !d.Before(b.Start) && !d.After(b.End)
}

// MondayOnOrBefore returns the Monday of the week containing d.
func MondayOnOrBefore(d time.Time) time.Time {
	d = civil(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// BucketFor returns the week containing d.
func BucketFor(d time.Time) Bucket {
	start := MondayOnOrBefore(d)
	return Bucket{Start: start, End: start.AddDate(0, 0, 6)}
}

// Span returns the weeks covering [first, last], most recent first. Index 0
// holds last; the final element holds first. first must not be after last.
func Span(first, last time.Time) []Bucket {
	start := MondayOnOrBefore(first)
	cursor := MondayOnOrBefore(last)

	var buckets []Bucket
	for !cursor.Before(start) {
		buckets = append(buckets, Bucket{Start: cursor, End: cursor.AddDate(0, 0, 6)})
		cursor = cursor.AddDate(0, 0, -7)
	}
	return buckets
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
