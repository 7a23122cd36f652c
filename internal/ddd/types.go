// Package ddd decodes tachograph DDD downloads into per-day odometer summaries.
package ddd

import (
	"errors"
	"fmt"
)

// Source identifies which device a DDD download was taken from.
type Source string

const (
	// SourceVehicleUnit is a download from the vehicle unit.
	SourceVehicleUnit Source = "vu"
	// SourceCard is a download from a driver card.
	SourceCard Source = "card"
)

var (
	// ErrEmptyPayload is returned when there is nothing to decode.
	ErrEmptyPayload = errors.New("payload must not be empty")
	// ErrMalformedFrame is returned in strict mode when the payload is not a
	// well-formed sequence of TLV frames.
	ErrMalformedFrame = errors.New("malformed TLV frame")
	// ErrInvalidSource is returned for a source other than vu or card.
	ErrInvalidSource = errors.New("source must be either 'vu' or 'card'")
)

// ParseSource returns the Source named exactly by s.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceVehicleUnit:
		return SourceVehicleUnit, nil
	case SourceCard:
		return SourceCard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
	}
}

// Day is the odometer summary for one calendar day.
type Day struct {
	Date          string `json:"date" yaml:"date"`
	StartOdometer int    `json:"startOdometer" yaml:"startOdometer"`
	EndOdometer   int    `json:"endOdometer" yaml:"endOdometer"`
	DistanceKm    int    `json:"distanceKm" yaml:"distanceKm"`
}

// DecodeOptions controls decoder leniency.
type DecodeOptions struct {
	// Strict rejects payloads that are not well-formed TLV instead of
	// falling back to a raw record scan.
	Strict bool
}
