// Package mobile is the gomobile-bindable surface of the DDD parser.
//
// Android and iOS callers obtain a Parser from CreateParser, passing the two
// PKS certificate directories, and then parse downloads on it:
//
//	parser, err := mobile.CreateParser(pks1Dir, pks2Dir)
//	res, err := parser.ParseDdd(payload, &mobile.ParseOptions{Source: "card"})
package mobile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kpumuk/tacho-weaver/internal/backend"
	"github.com/kpumuk/tacho-weaver/internal/ddd"
)

const (
	statusOk        = "ok"
	statusError     = "error"
	statusCancelled = "cancelled"
)

// maxTimeoutMs is the largest TimeoutMs that fits in a time.Duration. Larger
// values mean no timeout.
const maxTimeoutMs = math.MaxInt64 / int64(time.Millisecond)

// Parser wraps a backend parser and tracks the active parse so that
// CancelActiveParse can stop it. The zero value parses without PKS
// directories.
type Parser struct {
	mu     sync.Mutex
	inner  backend.Parser
	cancel context.CancelFunc
	active uint64
	closed bool
}

// NewParser returns a parser without PKS directories.
func NewParser() *Parser {
	return &Parser{}
}

// ParseOptions holds per-call settings.
type ParseOptions struct {
	Source     string
	Verify     bool
	StrictMode bool
	TimeoutMs  int64
}

// ParseResult is returned by successful, cancelled and verification-failed
// parses. Status is "ok", "cancelled" or "error".
type ParseResult struct {
	Status          string
	PayloadJSON     string
	Verified        bool
	VerificationLog string
	ErrorDetails    string
}

// ParseDdd decodes payload. Starting a parse cancels any parse already
// running on p.
func (p *Parser) ParseDdd(payload []byte, opts *ParseOptions) (*ParseResult, error) {
	if len(payload) == 0 {
		return nil, newNativeError(ErrInvalidArguments, "payload must not be empty")
	}
	if opts == nil {
		return nil, newNativeError(ErrInvalidArguments, "options must be provided")
	}
	source, err := ddd.ParseSource(opts.Source)
	if err != nil {
		return nil, newNativeError(ErrInvalidArguments, ddd.ErrInvalidSource.Error())
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if opts.TimeoutMs > 0 && opts.TimeoutMs <= maxTimeoutMs {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(opts.TimeoutMs)*time.Millisecond)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	inner, token, err := p.begin(cancel)
	if err != nil {
		cancel()
		return nil, toNativeError(err)
	}
	defer p.end(token)

	res, err := inner.Parse(ctx, payload, backend.Options{
		Source: source,
		Verify: opts.Verify,
		Strict: opts.StrictMode,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &ParseResult{Status: statusCancelled}, nil
		}
		return nil, toNativeError(err)
	}
	if res.VerificationErr != nil {
		return &ParseResult{
			Status:       statusError,
			ErrorDetails: fmt.Sprintf("verification failed: %v", res.VerificationErr),
		}, nil
	}
	return marshalResult(res)
}

// ParseVehicleUnit parses a vehicle unit download.
func (p *Parser) ParseVehicleUnit(payload []byte) (*ParseResult, error) {
	return p.ParseDdd(payload, &ParseOptions{Source: string(ddd.SourceVehicleUnit)})
}

// ParseCard parses a driver card download.
func (p *Parser) ParseCard(payload []byte) (*ParseResult, error) {
	return p.ParseDdd(payload, &ParseOptions{Source: string(ddd.SourceCard)})
}

// ParseWithTimeout parses payload from mode ("vu" or "card") within timeoutMs.
func (p *Parser) ParseWithTimeout(payload []byte, mode string, timeoutMs int64) (*ParseResult, error) {
	return p.ParseDdd(payload, &ParseOptions{Source: mode, TimeoutMs: timeoutMs})
}

// CancelActiveParse stops the running parse, if any.
func (p *Parser) CancelActiveParse() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Close cancels the running parse and releases the backend parser. Further
// parses fail. Close is idempotent.
func (p *Parser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.inner != nil {
		p.inner.Close()
		p.inner = nil
	}
	return nil
}

func (p *Parser) handle() backend.Parser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner
}

// begin registers cancel as the active parse, cancelling the previous one,
// and creates the backend parser on first use.
func (p *Parser) begin(cancel context.CancelFunc) (backend.Parser, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, 0, backend.ErrClosed
	}
	if p.inner == nil {
		inner, err := newBackendParser("", "")
		if err != nil {
			return nil, 0, err
		}
		p.inner = inner
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.active++
	p.cancel = cancel
	return p.inner, p.active, nil
}

func (p *Parser) end(token uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == token && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func marshalResult(res *backend.Result) (*ParseResult, error) {
	data, err := json.Marshal(res.Report)
	if err != nil {
		return nil, newNativeError(ErrParser, fmt.Sprintf("failed to serialise result: %v", err))
	}
	out := &ParseResult{
		Status:      statusOk,
		PayloadJSON: string(data),
		Verified:    res.Verified,
	}
	if res.Verified {
		log, err := json.Marshal(res.Certificates)
		if err != nil {
			return nil, newNativeError(ErrParser, fmt.Sprintf("failed to serialise verification log: %v", err))
		}
		out.VerificationLog = string(log)
	}
	return out, nil
}
