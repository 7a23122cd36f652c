package testutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/kpumuk/tacho-weaver/internal/pks"
)

// WriteStore creates a PKS directory for gen at dir containing the root
// certificate and any extra files.
func WriteStore(t testing.TB, fsys afero.Fs, gen pks.Generation, dir string, extra map[string]string) {
	t.Helper()
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", dir, err)
	}
	files := map[string]string{gen.RootCertificate(): "root-" + gen.String()}
	for name, body := range extra {
		files[name] = body
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll(%s): %v", filepath.Dir(path), err)
		}
		if err := afero.WriteFile(fsys, path, []byte(body), 0o600); err != nil {
			t.Fatalf("WriteFile(%s): %v", path, err)
		}
	}
}

// WriteStores creates gen1 and gen2 stores under root and returns their paths.
func WriteStores(t testing.TB, fsys afero.Fs, root string) (pks1Dir, pks2Dir string) {
	t.Helper()
	pks1Dir = filepath.Join(root, "pks1")
	pks2Dir = filepath.Join(root, "pks2")
	WriteStore(t, fsys, pks.Generation1, pks1Dir, map[string]string{"member/DE.bin": "de"})
	WriteStore(t, fsys, pks.Generation2, pks2Dir, nil)
	return pks1Dir, pks2Dir
}
