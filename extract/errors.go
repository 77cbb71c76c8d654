package extract

import "fmt"

// AbortError terminates one record type's extraction after the retry bound
// is exceeded on a page load. Records yielded before the abort are
// preserved by the caller; Yielded and LastPage let a rerun be scoped to
// just the missing tail.
type AbortError struct {
	Type    RecordType
	Yielded int
	LastPage int // last fully completed page, 0 = none
	Err     error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("extract: %s aborted after page %d (%d records yielded): %v",
		e.Type, e.LastPage, e.Yielded, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }
