// Package pricing resolves the price in effect on a given date from a price
// history. Histories are indexed once into sorted timelines so every lookup
// is a binary search.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/synaptica-ai/warehouse-etl/pkg/normalizer"
)

var ErrNoApplicablePrice = errors.New("no applicable price")

// NoApplicablePriceError means no entry of the timeline starts on or before AsOf.
type NoApplicablePriceError struct {
	Timeline string
	Key      int64
	Keyed    bool
	AsOf     time.Time
}

func (e *NoApplicablePriceError) Error() string {
	if e.Keyed {
		return fmt.Sprintf("%s: no price for key %d effective on or before %s", e.Timeline, e.Key, e.AsOf.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s: no price effective on or before %s", e.Timeline, e.AsOf.Format("2006-01-02"))
}

func (e *NoApplicablePriceError) Unwrap() error {
	return ErrNoApplicablePrice
}

type Point struct {
	From  time.Time
	Price float64
}

// Timeline is a price history sorted by From. Entries sharing a From date
// keep their arrival order, and the last of them wins a lookup.
type Timeline struct {
	name   string
	points []Point
}

// NewTimeline copies and sorts points. The input slice is left untouched.
func NewTimeline(name string, points []Point) Timeline {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].From.Before(sorted[j].From)
	})
	return Timeline{name: name, points: sorted}
}

func (t Timeline) Len() int {
	return len(t.points)
}

// Resolve returns the price of the latest entry whose From is not after asOf.
func (t Timeline) Resolve(asOf time.Time) (float64, error) {
	p, ok := t.lookup(asOf)
	if !ok {
		return 0, &NoApplicablePriceError{Timeline: t.name, AsOf: asOf}
	}
	return p.Price, nil
}

func (t Timeline) lookup(asOf time.Time) (Point, bool) {
	// first entry strictly after asOf; the one before it is the answer
	idx := sort.Search(len(t.points), func(i int) bool {
		return t.points[i].From.After(asOf)
	})
	if idx == 0 {
		return Point{}, false
	}
	return t.points[idx-1], true
}

// Index holds one timeline per key, e.g. per test_code.
type Index struct {
	name      string
	timelines map[int64]Timeline
}

type KeyedPoint struct {
	Key int64
	Point
}

func NewIndex(name string, entries []KeyedPoint) *Index {
	grouped := make(map[int64][]Point)
	for _, e := range entries {
		grouped[e.Key] = append(grouped[e.Key], e.Point)
	}
	timelines := make(map[int64]Timeline, len(grouped))
	for key, points := range grouped {
		timelines[key] = NewTimeline(name, points)
	}
	return &Index{name: name, timelines: timelines}
}

func (i *Index) Resolve(key int64, asOf time.Time) (float64, error) {
	timeline, ok := i.timelines[key]
	if ok {
		if p, found := timeline.lookup(asOf); found {
			return p.Price, nil
		}
	}
	return 0, &NoApplicablePriceError{Timeline: i.name, Key: key, Keyed: true, AsOf: asOf}
}

// TestPrices indexes the test cost history by test_code.
func TestPrices(costs []normalizer.TestCost) *Index {
	entries := make([]KeyedPoint, 0, len(costs))
	for _, c := range costs {
		entries = append(entries, KeyedPoint{Key: c.TestCode, Point: Point{From: c.PriceDateFrom, Price: c.Price}})
	}
	return NewIndex(normalizer.TableTestCost, entries)
}

// StayPrices builds the global per-day stay cost timeline.
func StayPrices(costs []normalizer.StayDailyCost) Timeline {
	points := make([]Point, 0, len(costs))
	for _, c := range costs {
		points = append(points, Point{From: c.PriceDateFrom, Price: c.Price})
	}
	return NewTimeline(normalizer.TableStayDailyCost, points)
}
