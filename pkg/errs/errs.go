// Package errs defines the error kinds raised by the aggregation engine.
//
// Every engine failure is one of three kinds:
//
//	ErrConfiguration     degenerate grid span, unknown frequency, bad schema
//	ErrInvalidParameter  percentile outside [0,1], filter value not in the catalogue
//	ErrDataIntegrity     missing fields, non-numeric or negative values
//
// Errors are returned synchronously and never retried. Callers that wrap them
// with fmt.Errorf("...: %w") can still classify them with Is and KindOf.
package errs

import (
	"errors"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrConfiguration is returned for unusable aggregation configuration.
	ErrConfiguration = goerrors.NewKind("configuration error: %s")

	// ErrInvalidParameter is returned for out-of-range or unknown query parameters.
	ErrInvalidParameter = goerrors.NewKind("invalid parameter: %s")

	// ErrDataIntegrity is returned when an observation table is malformed.
	ErrDataIntegrity = goerrors.NewKind("data integrity error: %s")
)

// Kinds lists every engine error kind, most specific first.
var Kinds = []*goerrors.Kind{ErrInvalidParameter, ErrDataIntegrity, ErrConfiguration}

// Is reports whether any error in err's chain is of the given kind.
func Is(err error, kind *goerrors.Kind) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if kind.Is(e) {
			return true
		}
	}
	return false
}

// KindOf returns the kind of the first engine error in err's chain, or nil.
func KindOf(err error) *goerrors.Kind {
	for e := err; e != nil; e = errors.Unwrap(e) {
		for _, k := range Kinds {
			if k.Is(e) {
				return k
			}
		}
	}
	return nil
}

// Name returns a short machine-readable name for kind
func Name(kind *goerrors.Kind) string {
	switch kind {
	case ErrConfiguration:
		return "configuration"
	case ErrInvalidParameter:
		return "invalid_parameter"
	case ErrDataIntegrity:
		return "data_integrity"
	}
	return ""
}
