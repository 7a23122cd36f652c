package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kpumuk/tacho-weaver/internal/ddd"
	"github.com/kpumuk/tacho-weaver/internal/pks"
)

const nativeFactoryName = "native"

// Config configures the native backend. Zero values select the OS
// filesystem, a no-op logger and the wall clock.
type Config struct {
	Fs     afero.Fs
	Logger *zap.Logger
	Now    func() time.Time
}

type nativeFactory struct {
	cfg Config
}

// NewNativeFactory returns the default parser backend factory.
func NewNativeFactory(cfg Config) Factory {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &nativeFactory{cfg: cfg}
}

func (*nativeFactory) Name() string {
	return nativeFactoryName
}

// NewParser loads both stores. An empty directory leaves that store unset.
func (f *nativeFactory) NewParser(pks1Dir, pks2Dir string) (Parser, error) {
	ctx := context.Background()
	gen1, err := pks.Load(ctx, f.cfg.Fs, pks.Generation1, pks1Dir)
	if err != nil {
		return nil, err
	}
	gen2, err := pks.Load(ctx, f.cfg.Fs, pks.Generation2, pks2Dir)
	if err != nil {
		return nil, err
	}

	p := &nativeParser{logger: f.cfg.Logger, now: f.cfg.Now}
	for _, s := range []*pks.Store{gen1, gen2} {
		if s != nil {
			p.stores = append(p.stores, s)
		}
	}
	f.cfg.Logger.Debug("parser created",
		zap.String("backend", nativeFactoryName),
		zap.String("pks1", pks1Dir),
		zap.String("pks2", pks2Dir),
		zap.Int("stores", len(p.stores)),
	)
	return p, nil
}

type nativeParser struct {
	stores []*pks.Store
	logger *zap.Logger
	now    func() time.Time
	closed atomic.Bool
}

func (p *nativeParser) Parse(ctx context.Context, payload []byte, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if opts.Verify {
		if err := p.canVerify(opts.Strict); err != nil {
			return nil, err
		}
	}

	days, err := ddd.Decode(ctx, payload, ddd.DecodeOptions{Strict: opts.Strict})
	if err != nil {
		return nil, err
	}
	res := &Result{Report: ddd.NewReport(payload, opts.Source, days, p.now())}

	if opts.Verify {
		certs, err := p.verify(ctx)
		switch {
		case err == nil:
			res.Verified = true
			res.Certificates = certs
			res.Report.Verified = true
			res.Report.Certificates = certs
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, fs.ErrNotExist):
			return nil, err
		default:
			res.VerificationErr = err
		}
	}

	p.logger.Debug("payload parsed",
		zap.String("source", string(opts.Source)),
		zap.Int("bytes", len(payload)),
		zap.Int("days", res.Report.TotalDays),
		zap.Bool("verified", res.Verified),
		zap.NamedError("verification", res.VerificationErr),
	)
	return res, nil
}

func (p *nativeParser) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.logger.Debug("parser closed")
	}
}

func (p *nativeParser) canVerify(strict bool) error {
	switch {
	case len(p.stores) == 0:
		return ErrVerificationUnavailable
	case strict && len(p.stores) < 2:
		return fmt.Errorf("%w: strict mode needs both pks1 and pks2", ErrVerificationUnavailable)
	}
	return nil
}

func (p *nativeParser) verify(ctx context.Context) ([]pks.Certificate, error) {
	var certs []pks.Certificate
	for _, s := range p.stores {
		if err := s.Check(ctx); err != nil {
			return nil, err
		}
		certs = append(certs, s.Certificates...)
	}
	return certs, nil
}
