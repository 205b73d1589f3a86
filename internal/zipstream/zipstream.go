// Package zipstream lists and streams entries out of a sandboxed ZIP
// archive over tunnel Data frames (spec.md §4.6/§5.6). MiniZ is the
// out-of-scope native inflate implementation the spec's interface sits in
// front of; stdlib archive/zip is the Go-native equivalent, so there is
// nothing to wire around it.
package zipstream

import "errors"

// ErrOutsideSandbox mirrors internal/vfs's sandbox-escape error; every
// path argument must resolve to the sandbox root or a descendant of it.
var ErrOutsideSandbox = errors.New("zipstream: path escapes sandbox root")

// Client->server message tags, deliberately shaped like internal/vfs's
// MOUNT/READDIR/OPEN/READ opcodes: one producer's output (this service)
// is meant to be wired straight into the other's opcode convention.
const (
	OpMountArchive byte = 1
	OpReaddir      byte = 2
	OpOpen         byte = 3
	OpRead         byte = 4
	OpClose        byte = 5
)

const (
	StatusOK   byte = 0x00
	StatusFail byte = 0x01
)

const maxReadLen = 512
