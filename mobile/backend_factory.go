package mobile

import (
	"sync"

	"github.com/kpumuk/tacho-weaver/internal/backend"
)

var (
	parserFactoryMu sync.RWMutex
	parserFactory   = backend.NewNativeFactory(backend.Config{})
)

func currentParserFactory() backend.Factory {
	parserFactoryMu.RLock()
	factory := parserFactory
	parserFactoryMu.RUnlock()
	return factory
}

func setParserFactoryForTesting(factory backend.Factory) func() {
	parserFactoryMu.Lock()
	prev := parserFactory
	parserFactory = factory
	parserFactoryMu.Unlock()

	return func() {
		parserFactoryMu.Lock()
		parserFactory = prev
		parserFactoryMu.Unlock()
	}
}
