// Package iox provides the byte-level I/O the chunk decoders are built on:
// a little-endian cursor over a seekable source, its symmetric writer, and
// cleanup helpers.
package iox

import "io"

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(zr)
func DiscardClose(c io.Closer) { _ = c.Close() }
