package service

import (
	"time"

	"session-service/internal/calcom"
	"session-service/internal/model"
)

// DeriveStatus places now relative to a session's earliest start and latest
// end. Both bounds are inclusive for "ongoing".
func DeriveStatus(now, earliestStart, latestEnd time.Time) model.SessionStatus {
	if now.Before(earliestStart) {
		return model.StatusUpcoming
	}
	if !now.After(latestEnd) {
		return model.StatusOngoing
	}
	return model.StatusCompleted
}

// SlotBounds returns the earliest start and latest end across slots. ok is
// false when no slot carries a usable date.
func SlotBounds(slots []model.Slot, loc *time.Location) (earliest, latest time.Time, ok bool) {
	for _, slot := range slots {
		if start, valid := slot.StartDate.At(slot.StartTime, loc); valid {
			if earliest.IsZero() || start.Before(earliest) {
				earliest = start
			}
		}

		endDate := slot.EndDate
		if endDate.IsZero() {
			endDate = slot.StartDate
		}
		if end, valid := endDate.At(slot.EndTime, loc); valid {
			if latest.IsZero() || end.After(latest) {
				latest = end
			}
		}
	}

	if earliest.IsZero() || latest.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return earliest, latest, true
}

// StatusOf derives the status of a session from its slots. A session without
// dated slots has nothing left to attend and reports completed.
func StatusOf(now time.Time, slots []model.Slot, loc *time.Location) model.SessionStatus {
	earliest, latest, ok := SlotBounds(slots, loc)
	if !ok {
		return model.StatusCompleted
	}
	return DeriveStatus(now, earliest, latest)
}

// SumParticipants counts attendees per originating event id.
func SumParticipants(bookings []calcom.Booking) map[string]int {
	counts := make(map[string]int)
	for _, booking := range bookings {
		eventID := booking.EventID()
		if eventID == "" {
			continue
		}
		counts[eventID] += len(booking.Attendees)
	}
	return counts
}

// BookingWindow returns the first start date and last end date across the
// slot inputs as ISO dates.
func BookingWindow(slots []model.SlotInput) (start, end string) {
	var first, last model.Date
	for _, slot := range slots {
		if !slot.StartDate.IsZero() && (first.IsZero() || slot.StartDate.Before(first.Time)) {
			first = slot.StartDate
		}
		endDate := slot.EndDate
		if endDate.IsZero() {
			endDate = slot.StartDate
		}
		if !endDate.IsZero() && (last.IsZero() || endDate.After(last.Time)) {
			last = endDate
		}
	}
	return first.String(), last.String()
}

// Availability turns the slots' time-of-day ranges into schedule blocks that
// apply to every weekday. Identical ranges collapse into one block.
func Availability(slots []model.SlotInput) []calcom.Availability {
	seen := make(map[string]bool, len(slots))
	blocks := make([]calcom.Availability, 0, len(slots))
	for _, slot := range slots {
		key := slot.StartTime + "-" + slot.EndTime
		if seen[key] {
			continue
		}
		seen[key] = true
		blocks = append(blocks, calcom.Availability{
			Days:      calcom.AllDays,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}
	return blocks
}
