package pks_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpumuk/tacho-weaver/internal/pks"
	"github.com/kpumuk/tacho-weaver/internal/testutil"
)

func TestLoadEmptyDirIsUnconfigured(t *testing.T) {
	t.Parallel()

	store, err := pks.Load(context.Background(), afero.NewMemMapFs(), pks.Generation1, "")
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestLoadSnapshotsCertificates(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.WriteStore(t, fsys, pks.Generation1, "/res/pks1", map[string]string{
		"member/DE.bin": "de",
		"member/FR.bin": "fr",
	})

	store, err := pks.Load(context.Background(), fsys, pks.Generation1, "/res/pks1")
	require.NoError(t, err)
	require.NotNil(t, store)

	paths := make([]string, 0, len(store.Certificates))
	for _, c := range store.Certificates {
		assert.Equal(t, pks.Generation1, c.Generation)
		assert.NotEmpty(t, c.Fingerprint)
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"EC_PK.bin", "member/DE.bin", "member/FR.bin"}, paths)
}

func TestLoadAcceptsUnderscoredRootCertificate(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/res/pks2", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/res/pks2/ERCA_Gen2_(1)_Root_Certificate.bin", []byte("root"), 0o600))

	store, err := pks.Load(context.Background(), fsys, pks.Generation2, "/res/pks2")
	require.NoError(t, err)
	assert.Len(t, store.Certificates, 1)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/res", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/res/file", []byte("x"), 0o600))
	require.NoError(t, fsys.MkdirAll("/res/empty", 0o755))

	tests := []struct {
		name string
		dir  string
		want error
	}{
		{name: "missing", dir: "/missing", want: fs.ErrNotExist},
		{name: "not a directory", dir: "/res/file", want: pks.ErrNotDirectory},
		{name: "no root certificate", dir: "/res/empty", want: pks.ErrMissingRootCertificate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := pks.Load(context.Background(), fsys, pks.Generation1, tt.dir)
			assert.Nil(t, store)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.dir)
		})
	}
}

func TestCheckDetectsChanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(afero.Fs) error
		want   error
		detail string
	}{
		{
			name:   "unchanged",
			mutate: func(afero.Fs) error { return nil },
		},
		{
			name: "modified",
			mutate: func(f afero.Fs) error {
				return afero.WriteFile(f, "/res/pks1/member/DE.bin", []byte("tampered"), 0o600)
			},
			want:   pks.ErrStoreChanged,
			detail: "modified member/DE.bin",
		},
		{
			name:   "removed",
			mutate: func(f afero.Fs) error { return f.Remove("/res/pks1/member/DE.bin") },
			want:   pks.ErrStoreChanged,
			detail: "removed member/DE.bin",
		},
		{
			name: "added",
			mutate: func(f afero.Fs) error {
				return afero.WriteFile(f, "/res/pks1/member/PL.bin", []byte("pl"), 0o600)
			},
			want:   pks.ErrStoreChanged,
			detail: "added member/PL.bin",
		},
		{
			name:   "vanished",
			mutate: func(f afero.Fs) error { return f.RemoveAll("/res/pks1") },
			want:   fs.ErrNotExist,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := afero.NewMemMapFs()
			testutil.WriteStore(t, fsys, pks.Generation1, "/res/pks1", map[string]string{"member/DE.bin": "de"})
			store, err := pks.Load(context.Background(), fsys, pks.Generation1, "/res/pks1")
			require.NoError(t, err)

			require.NoError(t, tt.mutate(fsys))
			err = store.Check(context.Background())
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			if tt.detail != "" {
				assert.Contains(t, err.Error(), tt.detail)
			}
		})
	}
}

func TestLoadHonorsCancellation(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.WriteStore(t, fsys, pks.Generation2, "/res/pks2", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pks.Load(ctx, fsys, pks.Generation2, "/res/pks2")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want %v", err, context.Canceled)
	}
}

func TestGenerationNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pks1", pks.Generation1.String())
	assert.Equal(t, "pks2", pks.Generation2.String())
	assert.Empty(t, pks.Generation(3).RootCertificate())
}
