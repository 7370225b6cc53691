package calendar

import (
	"fmt"
	"math"
	"time"
)

// DefaultMinSlotMinutes is the minimum free slot length used when the
// caller does not specify one.
const DefaultMinSlotMinutes float64 = 30

// slotLayout renders slot boundaries in UTC with millisecond precision.
const slotLayout = "2006-01-02T15:04:05.000Z07:00"

// FindFreeSlots scans merged busy intervals across [searchStart, searchEnd)
// and returns every gap of at least minMinutes. merged must be the output of
// MergeBusyIntervals. A minMinutes of zero or less selects
// DefaultMinSlotMinutes. Fractional minimums are compared exactly; only the
// reported DurationMinutes is floored. Gaps are clamped to the window.
//
// An error means the input is inconsistent; callers should fall back to the
// unenhanced result.
func FindFreeSlots(merged []BusyInterval, searchStart, searchEnd time.Time, minMinutes float64) ([]FreeSlot, error) {
	if minMinutes <= 0 {
		minMinutes = DefaultMinSlotMinutes
	}
	if searchStart.IsZero() || searchEnd.IsZero() {
		return nil, fmt.Errorf("search window is incomplete")
	}
	if searchEnd.Before(searchStart) {
		return nil, fmt.Errorf("search window ends (%s) before it starts (%s)",
			searchEnd.Format(time.RFC3339), searchStart.Format(time.RFC3339))
	}
	for i, iv := range merged {
		if iv.End.Before(iv.Start) {
			return nil, fmt.Errorf("busy interval %d ends before it starts", i)
		}
	}

	slots := []FreeSlot{}
	cursor := searchStart
	for _, iv := range merged {
		if !cursor.Before(searchEnd) {
			break
		}
		if iv.Start.After(cursor) {
			end := iv.Start
			if end.After(searchEnd) {
				end = searchEnd
			}
			slots = appendSlot(slots, cursor, end, minMinutes)
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if cursor.Before(searchEnd) {
		slots = appendSlot(slots, cursor, searchEnd, minMinutes)
	}
	return slots, nil
}

func appendSlot(slots []FreeSlot, start, end time.Time, minMinutes float64) []FreeSlot {
	minutes := end.Sub(start).Minutes()
	if minutes < minMinutes {
		return slots
	}
	return append(slots, FreeSlot{
		Start:           start.UTC().Format(slotLayout),
		End:             end.UTC().Format(slotLayout),
		DurationMinutes: int(math.Floor(minutes)),
	})
}
