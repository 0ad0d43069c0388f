package stdio

import (
	"io"
	"log/slog"
)

// Option customizes a Transport.
type Option func(*Transport)

// WithIO sets the reader and writer for the transport.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(t *Transport) {
		if r != nil {
			t.r = r
		}
		if w != nil {
			t.w = w
		}
	}
}

// WithWriter overrides the output stream.
func WithWriter(w io.Writer) Option {
	return func(t *Transport) {
		if w != nil {
			t.w = w
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithMaxLineBytes caps the length of a single line. A longer line is
// discarded with one warning, however it is split across reads. Zero removes
// the cap.
func WithMaxLineBytes(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.maxLine = n
		}
	}
}
