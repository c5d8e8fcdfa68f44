package telemetry

import (
	"fmt"
)

// API is what components report through instead of logging directly, tests
// substitute a recording implementation.
type API interface {
	// ReportBroken reports a failure that needs attention. id names the
	// component and method that failed as `<struct>.<method>` (ex.
	// `client.paginate`), all lowercase with dashes between words. Details
	// belong in params or in the wrapped error.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that did not stop the
	// component, id follows the rules of ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug is only shown when running verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports how many of something a component handled, counts
	// are samples and are not summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id and debug message with a namespace, usually the
// name of the component it was handed to.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s:%s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
