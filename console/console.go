// Package console models the external console contract spec.md §6 names:
// "putbuf(buf, n), input_getc()". The real hardware console driver (VGA
// text mode, PS/2 keyboard, the Pmsga early-boot print path) is out of
// scope (spec.md §1); this package is the seam package trap calls through
// for SYS_WRITE on fd 1, plus an in-memory fake for tests.
//
// Grounded on mit-pdos-biscuit/biscuit/src/kernel/syscall.go's console_t,
// which wraps the same two operations (poll/read/write) behind a small
// interface satisfying the rest of the kernel's Console_i contract;
// trimmed here to the two calls spec.md actually lists.
package console

import "bytes"
import "os"
import "sync"

// Device is the console contract: Putbuf writes n bytes straight through
// (no line buffering, no FS lock — spec.md §4.H "console writes do not"
// acquire it), Getc blocks for the next typed byte.
type Device interface {
	Putbuf(buf []byte)
	Getc() byte
}

// Stdio is a Device backed by the process's real stdout/stdin, used by
// cmd/kernel's live boot path.
type Stdio struct{}

func (Stdio) Putbuf(buf []byte) { os.Stdout.Write(buf) }

// Getc is unimplemented for Stdio: a real keyboard driver is out of scope
// (spec.md §1), and cmd/kernel's demo programs never read from the
// console. Called only if a program does so; panics rather than silently
// returning garbage.
func (Stdio) Getc() byte { panic("console: Stdio.Getc is not implemented") }

// Fake is an in-memory Device for tests: Putbuf appends to a buffer
// instead of touching the terminal, and Getc serves bytes from a
// preloaded queue.
type Fake struct {
	mu  sync.Mutex
	out bytes.Buffer
	in  []byte
}

// NewFake returns a Device whose Getc will serve the bytes of input, in
// order, before panicking on an exhausted queue.
func NewFake(input string) *Fake {
	return &Fake{in: []byte(input)}
}

func (f *Fake) Putbuf(buf []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out.Write(buf)
}

func (f *Fake) Getc() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.in) == 0 {
		panic("console: Fake.Getc called with no input queued")
	}
	c := f.in[0]
	f.in = f.in[1:]
	return c
}

// Written returns everything Putbuf has accumulated so far.
func (f *Fake) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.String()
}
