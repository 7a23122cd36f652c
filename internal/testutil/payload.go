// Package testutil provides shared helpers for repository tests.
package testutil

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/kpumuk/tacho-weaver/internal/ddd"
)

// ActivityTag is a frame tag the decoder treats as activity data.
const ActivityTag byte = 0xC1

// DayRecord encodes one 8-byte day record for date (YYYY-MM-DD).
func DayRecord(t testing.TB, date string, start, end int) []byte {
	t.Helper()
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		t.Fatalf("time.Parse(%q): %v", date, err)
	}
	raw, err := ddd.EncodeDate(d)
	if err != nil {
		t.Fatalf("EncodeDate(%q): %v", date, err)
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint16(out, raw)
	putUint24(out[2:], start)
	putUint24(out[5:], end)
	return out
}

// Frame wraps body in a TLV frame with tag.
func Frame(tag byte, body ...[]byte) []byte {
	var n int
	for _, b := range body {
		n += len(b)
	}
	out := make([]byte, 3, 3+n)
	out[0] = tag
	binary.BigEndian.PutUint16(out[1:], uint16(n))
	for _, b := range body {
		out = append(out, b...)
	}
	return out
}

// Concat joins byte slices.
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// SamplePayload is a framed download with two days of driving and one
// non-activity frame.
func SamplePayload(t testing.TB) []byte {
	t.Helper()
	return Concat(
		Frame(0x01, []byte("header")),
		Frame(ActivityTag,
			DayRecord(t, "2024-03-01", 1000, 1250),
			DayRecord(t, "2024-03-02", 1250, 1300),
		),
	)
}

func putUint24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
