package rest

import (
	"errors"
	"fmt"
)

// FetchError reports a transport failure or a non-200 response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports a response whose body or shape did not match what the caller expected.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrNotList is wrapped in a DecodeError when a listing endpoint returns something other than an array.
var ErrNotList = errors.New("response is not a list")

// ErrMissingData is wrapped in a DecodeError when an envelope lacks its data list.
var ErrMissingData = errors.New("response has no data list")

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
