package ddd

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/lo"

	"github.com/kpumuk/tacho-weaver/internal/pks"
)

// Report is the serializable outcome of decoding one download.
type Report struct {
	Bytes           int               `json:"bytes" yaml:"bytes"`
	Source          Source            `json:"source" yaml:"source"`
	SHA256          string            `json:"sha256" yaml:"sha256"`
	GeneratedAt     string            `json:"generatedAt" yaml:"generatedAt"`
	Days            []Day             `json:"days" yaml:"days"`
	TotalDays       int               `json:"totalDays" yaml:"totalDays"`
	TotalDistanceKm int               `json:"totalDistanceKm" yaml:"totalDistanceKm"`
	Verified        bool              `json:"verified,omitempty" yaml:"verified,omitempty"`
	Certificates    []pks.Certificate `json:"verification,omitempty" yaml:"verification,omitempty"`
}

// NewReport summarizes decoded days for payload.
func NewReport(payload []byte, source Source, days []Day, now time.Time) *Report {
	if days == nil {
		days = []Day{}
	}
	sum := sha256.Sum256(payload)
	return &Report{
		Bytes:       len(payload),
		Source:      source,
		SHA256:      hex.EncodeToString(sum[:]),
		GeneratedAt: now.UTC().Format(time.RFC3339Nano),
		Days:        days,
		TotalDays:   len(days),
		TotalDistanceKm: lo.SumBy(days, func(d Day) int {
			return d.DistanceKm
		}),
	}
}
