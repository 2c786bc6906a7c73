package crawler

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every request validation failure. Nothing is
// fetched when a request fails validation.
var ErrValidation = errors.New("invalid crawl request")

var (
	ErrOverPage     = fmt.Errorf("%w: over page", ErrValidation)
	ErrInvalidStart = fmt.Errorf("%w: start offset out of range", ErrValidation)
	ErrEmptyQuery   = fmt.Errorf("%w: empty query", ErrValidation)
)

// FetchError reports that the first page of a crawl could not be fetched.
// Later page failures end the crawl early instead.
type FetchError struct {
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch first page at offset %d: %v", e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CacheError reports that the seen-link cache could not be read.
type CacheError struct {
	Query string
	Err   error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("read seen links for %q: %v", e.Query, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
