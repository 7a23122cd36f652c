package ddd

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"time"
)

const (
	activityTagMin = 0xC0
	activityTagMax = 0xEF
	tlvHeaderLen   = 3

	recordLen = 8

	// MaxDailyDistanceKm bounds plausible per-day distances.
	MaxDailyDistanceKm = 2000
	odometerModulus    = 1 << 24

	epochYear  = 1985
	yearShift  = 9
	monthShift = 5

	yearMask  uint16 = 0xFE00
	monthMask uint16 = 0x01E0
	dayMask   uint16 = 0x001F
)

// Decode extracts per-day odometer summaries from payload, newest day first.
func Decode(ctx context.Context, payload []byte, opts DecodeOptions) ([]Day, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames, ok, err := splitFrames(ctx, payload)
	if err != nil {
		return nil, err
	}
	if !ok && opts.Strict {
		return nil, ErrMalformedFrame
	}

	acc := newDayAccumulator()
	if ok && len(frames) > 0 {
		for _, frame := range frames {
			if err := scanRecords(ctx, frame, acc); err != nil {
				return nil, err
			}
		}
		return acc.days(), nil
	}
	if err := scanRecords(ctx, payload, acc); err != nil {
		return nil, err
	}
	return acc.days(), nil
}

// splitFrames returns the bodies of activity frames. ok is false when the
// payload does not frame cleanly.
func splitFrames(ctx context.Context, data []byte) (frames [][]byte, ok bool, err error) {
	i := 0
	for i+tlvHeaderLen <= len(data) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		tag := data[i]
		n := int(binary.BigEndian.Uint16(data[i+1 : i+tlvHeaderLen]))
		i += tlvHeaderLen
		if n == 0 || i+n > len(data) {
			return nil, false, nil
		}
		if tag >= activityTagMin && tag <= activityTagMax {
			frames = append(frames, data[i:i+n])
		}
		i += n
	}
	if i != len(data) {
		return nil, false, nil
	}
	return frames, true, nil
}

func scanRecords(ctx context.Context, data []byte, acc *dayAccumulator) error {
	for i := 0; i+recordLen <= len(data); {
		if err := ctx.Err(); err != nil {
			return err
		}

		date, ok := decodeDate(binary.BigEndian.Uint16(data[i : i+2]))
		if !ok {
			i++
			continue
		}
		start := readUint24(data[i+2:])
		end := readUint24(data[i+5:])
		acc.add(date, int(start), int(end))
		i += recordLen
	}
	return nil
}

func decodeDate(raw uint16) (time.Time, bool) {
	year := int((raw&yearMask)>>yearShift) + epochYear
	month := int((raw & monthMask) >> monthShift)
	day := int(raw & dayMask)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// EncodeDate packs t into the two-byte record date. It is the inverse of the
// decoder and is used to build fixtures.
func EncodeDate(t time.Time) (uint16, error) {
	year := t.Year() - epochYear
	if year < 0 || year > int(yearMask>>yearShift) {
		return 0, fmt.Errorf("year %d out of range", t.Year())
	}
	return uint16(year)<<yearShift | uint16(t.Month())<<monthShift | uint16(t.Day()), nil
}

func readUint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// distanceKm handles the 24-bit odometer wrapping between start and end.
func distanceKm(start, end int) int {
	if d := end - start; d >= 0 {
		return d
	}
	return end + odometerModulus - start
}

type dayAccumulator struct {
	byDate map[time.Time]Day
}

func newDayAccumulator() *dayAccumulator {
	return &dayAccumulator{byDate: make(map[time.Time]Day)}
}

func (a *dayAccumulator) add(date time.Time, start, end int) {
	d := distanceKm(start, end)
	if d <= 0 || d > MaxDailyDistanceKm {
		return
	}
	if prev, ok := a.byDate[date]; ok && prev.DistanceKm >= d {
		return
	}
	a.byDate[date] = Day{
		Date:          date.Format(time.DateOnly),
		StartOdometer: start,
		EndOdometer:   end,
		DistanceKm:    d,
	}
}

func (a *dayAccumulator) days() []Day {
	out := make([]Day, 0, len(a.byDate))
	for _, d := range a.byDate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
