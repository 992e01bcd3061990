package stream

import "errors"

var (
	// ErrInvalidPayload marks a syntactically parseable but semantically
	// invalid frame: a non-success trailer status, a chunk-walk underflow,
	// or a missing chunk size field.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrBufferTooSmall is returned when a caller-supplied buffer cannot
	// hold the requested sized read.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrDevice marks an underlying transport failure: IO, timeout, or a
	// transport left unusable by a panicked streaming-loop goroutine.
	ErrDevice = errors.New("device error")

	// ErrInStreaming is returned by direct-read operations while a
	// streaming loop worker owns the transport.
	ErrInStreaming = errors.New("in streaming")
)
