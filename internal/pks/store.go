// Package pks loads the public key stores (PKS) used to verify tachograph
// downloads. A store is a directory of certificate files anchored by the
// European root certificate of its generation.
package pks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// Generation is the tachograph generation a store serves.
type Generation int

const (
	// Generation1 stores hold the first generation European root key.
	Generation1 Generation = 1
	// Generation2 stores hold the second generation ERCA root certificate.
	Generation2 Generation = 2
)

var (
	// ErrNotDirectory is returned when a store path is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrMissingRootCertificate is returned when a store lacks its root file.
	ErrMissingRootCertificate = errors.New("root certificate missing")
	// ErrStoreChanged is returned by Check when the directory no longer
	// matches the snapshot taken by Load.
	ErrStoreChanged = errors.New("certificate store changed")
)

// String returns the short store name, e.g. "pks1".
func (g Generation) String() string {
	return "pks" + strconv.Itoa(int(g))
}

// RootCertificate is the file every store of generation g must contain.
func (g Generation) RootCertificate() string {
	switch g {
	case Generation1:
		return "EC_PK.bin"
	case Generation2:
		return "ERCA Gen2 (1) Root Certificate.bin"
	default:
		return ""
	}
}

// Certificate describes one file in a store.
type Certificate struct {
	Generation  Generation `json:"generation" yaml:"generation"`
	Path        string     `json:"path" yaml:"path"`
	Size        int64      `json:"size" yaml:"size"`
	Fingerprint string     `json:"fingerprint" yaml:"fingerprint"`
}

// Store is a snapshot of a PKS directory.
type Store struct {
	Generation   Generation
	Dir          string
	Certificates []Certificate

	fs afero.Fs
}

// Load snapshots the store at dir. An empty dir means the store is not
// configured and yields a nil Store without error.
func Load(ctx context.Context, fsys afero.Fs, gen Generation, dir string) (*Store, error) {
	if dir == "" {
		return nil, nil
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if err := statDir(fsys, gen, dir); err != nil {
		return nil, err
	}

	certs, err := walk(ctx, fsys, gen, dir)
	if err != nil {
		return nil, err
	}
	if !hasRootCertificate(certs, gen) {
		return nil, fmt.Errorf("%s directory %q: %w: %s", gen, dir, ErrMissingRootCertificate, gen.RootCertificate())
	}
	return &Store{Generation: gen, Dir: dir, Certificates: certs, fs: fsys}, nil
}

// Check re-reads the directory and reports whether it still matches the
// snapshot. A vanished directory yields an error wrapping fs.ErrNotExist.
func (s *Store) Check(ctx context.Context) error {
	if err := statDir(s.fs, s.Generation, s.Dir); err != nil {
		return err
	}
	current, err := walk(ctx, s.fs, s.Generation, s.Dir)
	if err != nil {
		return err
	}
	if diff := firstDifference(s.Certificates, current); diff != "" {
		return fmt.Errorf("%s directory %q: %w: %s", s.Generation, s.Dir, ErrStoreChanged, diff)
	}
	return nil
}

func statDir(fsys afero.Fs, gen Generation, dir string) error {
	info, err := fsys.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s directory %q: %w", gen, dir, fs.ErrNotExist)
		}
		return fmt.Errorf("%s directory %q: %w", gen, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s directory %q: %w", gen, dir, ErrNotDirectory)
	}
	return nil
}

func walk(ctx context.Context, fsys afero.Fs, gen Generation, dir string) ([]Certificate, error) {
	var certs []Certificate
	err := afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		certs = append(certs, Certificate{
			Generation:  gen,
			Path:        filepath.ToSlash(rel),
			Size:        info.Size(),
			Fingerprint: strconv.FormatUint(xxhash.Sum64(data), 16),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s directory %q: %w", gen, dir, err)
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].Path < certs[j].Path })
	return certs, nil
}

func hasRootCertificate(certs []Certificate, gen Generation) bool {
	root := gen.RootCertificate()
	alt := strings.ReplaceAll(root, " ", "_")
	return lo.ContainsBy(certs, func(c Certificate) bool {
		return c.Path == root || c.Path == alt
	})
}

func firstDifference(want, got []Certificate) string {
	wantByPath := lo.KeyBy(want, func(c Certificate) string { return c.Path })
	gotByPath := lo.KeyBy(got, func(c Certificate) string { return c.Path })

	for _, c := range want {
		g, ok := gotByPath[c.Path]
		if !ok {
			return "removed " + c.Path
		}
		if g.Fingerprint != c.Fingerprint || g.Size != c.Size {
			return "modified " + c.Path
		}
	}
	for _, c := range got {
		if _, ok := wantByPath[c.Path]; !ok {
			return "added " + c.Path
		}
	}
	return ""
}
