package mobile

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kpumuk/tacho-weaver/internal/backend"
	"github.com/kpumuk/tacho-weaver/internal/ddd"
)

type stubFactory struct {
	mu   sync.Mutex
	dirs [][2]string

	newParser func(pks1Dir, pks2Dir string) (backend.Parser, error)
}

func (f *stubFactory) Name() string {
	return "stub-test-factory"
}

func (f *stubFactory) NewParser(pks1Dir, pks2Dir string) (backend.Parser, error) {
	f.mu.Lock()
	f.dirs = append(f.dirs, [2]string{pks1Dir, pks2Dir})
	f.mu.Unlock()
	if f.newParser != nil {
		return f.newParser(pks1Dir, pks2Dir)
	}
	return &stubParser{pks1Dir: pks1Dir, pks2Dir: pks2Dir}, nil
}

func (f *stubFactory) calls() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.dirs...)
}

type stubParser struct {
	pks1Dir string
	pks2Dir string
	closed  atomic.Int32

	// started, when set, receives a value once Parse is running.
	started chan struct{}
	// block makes Parse wait for context cancellation.
	block bool
}

func (p *stubParser) Parse(ctx context.Context, payload []byte, opts backend.Options) (*backend.Result, error) {
	started, block := p.started, p.block
	if started != nil {
		started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &backend.Result{Report: ddd.NewReport(payload, opts.Source, nil, fixedNow())}, nil
}

func (p *stubParser) Close() {
	p.closed.Add(1)
}
