package mobile

import (
	"errors"
	"reflect"

	"github.com/kpumuk/tacho-weaver/internal/backend"
)

// ErrNoParser is returned when the backend factory yields neither a parser
// nor an error.
var ErrNoParser = errors.New("parser factory returned no parser")

// CreateParser builds a parser bound to the two PKS directories. Empty
// strings mean "not configured". Factory errors are returned unchanged.
func CreateParser(pks1Dir, pks2Dir string) (*Parser, error) {
	inner, err := newBackendParser(pks1Dir, pks2Dir)
	if err != nil {
		return nil, err
	}
	return &Parser{inner: inner}, nil
}

// newBackendParser makes one factory call and returns exactly one of a usable
// parser and an error. A handle returned alongside an error is closed.
func newBackendParser(pks1Dir, pks2Dir string) (backend.Parser, error) {
	inner, err := currentParserFactory().NewParser(pks1Dir, pks2Dir)
	if isNilParser(inner) {
		if err == nil {
			return nil, ErrNoParser
		}
		return nil, err
	}
	if err != nil {
		inner.Close()
		return nil, err
	}
	return inner, nil
}

// isNilParser also catches a nil pointer stored in the interface.
func isNilParser(p backend.Parser) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
