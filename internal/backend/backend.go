// Package backend defines the parser backend abstractions behind the mobile
// factory and provides the native implementation.
package backend

import (
	"context"
	"errors"

	"github.com/kpumuk/tacho-weaver/internal/ddd"
	"github.com/kpumuk/tacho-weaver/internal/pks"
)

var (
	// ErrClosed is returned by Parse after Close.
	ErrClosed = errors.New("parser is closed")
	// ErrVerificationUnavailable is returned when verification is requested
	// but the parser was built without the stores it needs.
	ErrVerificationUnavailable = errors.New("verification requires a configured PKS directory")
)

// Options selects how a single payload is parsed.
type Options struct {
	Source ddd.Source
	Verify bool
	Strict bool
}

// Result is the outcome of a successful parse. VerificationErr carries a
// verification failure that did not prevent decoding.
type Result struct {
	Report          *ddd.Report
	Verified        bool
	Certificates    []pks.Certificate
	VerificationErr error
}

// Parser is a DDD parser bound to a pair of PKS directories.
type Parser interface {
	Parse(ctx context.Context, payload []byte, opts Options) (*Result, error)
	Close()
}

// Factory creates parser instances for a specific backend implementation.
type Factory interface {
	Name() string
	NewParser(pks1Dir, pks2Dir string) (Parser, error)
}
