package mobile

import (
	"testing"

	"github.com/kpumuk/tacho-weaver/internal/backend"
)

func TestDefaultParserFactoryIsNative(t *testing.T) {
	if got := currentParserFactory().Name(); got != "native" {
		t.Fatalf("currentParserFactory().Name() = %q, want %q", got, "native")
	}
}

func TestSetParserFactoryForTestingRestores(t *testing.T) {
	prev := currentParserFactory()
	factory := &stubFactory{}

	restore := setParserFactoryForTesting(factory)
	if got := currentParserFactory(); got != backend.Factory(factory) {
		t.Fatalf("currentParserFactory() = %v, want stub", got.Name())
	}
	restore()

	if got := currentParserFactory(); got != prev {
		t.Fatalf("currentParserFactory() = %v after restore, want %v", got.Name(), prev.Name())
	}
}
