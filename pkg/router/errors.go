package router

import "errors"

var (
	// ErrNoSourceBound is returned by navigation and location reads while
	// no navigation source is bound.
	ErrNoSourceBound = errors.New("router: no navigation source bound")

	// ErrClosed is returned by operations on a closed router.
	ErrClosed = errors.New("router: closed")

	// ErrNilSource is returned by BindSource(nil).
	ErrNilSource = errors.New("router: nil navigation source")
)
