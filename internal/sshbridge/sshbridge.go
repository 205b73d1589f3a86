// Package sshbridge copies tunnel Data frames to and from a remote
// terminal session (spec.md §4.6/§5.6: the Lynx/SSH bridge). The real
// SSH/Lynx subprocess lifetime is out of scope; Terminal is the narrow
// seam a real implementation would plug into.
package sshbridge

import "io"

// Terminal is the write side of a remote terminal: bytes typed by the
// uzenet client are written to it, and it can be told the client's
// terminal size changed. Reading the terminal's own output back is done
// through whatever io.Reader the concrete implementation also exposes
// (LocalShell exposes one via Output()); it is deliberately left out of
// this interface to keep it matching exactly what spec.md names.
type Terminal interface {
	io.Writer
	Resize(rows, cols int) error
}
