// Package fd implements the per-process open-file table (spec.md §4.I): a
// linear list of {fd, handle} records, fd values starting at 2 and never
// reused within a process.
//
// Grounded structurally on mit-pdos-biscuit/biscuit/src/common/fd.go's
// Fd_t — a small struct pairing a descriptor with an underlying handle —
// stripped down from that file's full POSIX surface (sockets, mmap,
// pollone, fcntl) since spec.md §4.I's table only ever holds filesystem
// handles: "a linear list of {fd, handle} records... Lookup is linear by
// fd." The list itself reuses package list's intrusive ordering rather
// than a slice, so Table_t can be embedded as one of thread.Thread_t's
// owner lists without a second allocation scheme.
package fd

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/fsys"
import "github.com/cs140-go/kernel/list"

// record is the table's one allocation site for a file-table entry
// (SPEC_FULL.md §7.3): always a single, fully-initialized composite
// literal, so there is no equivalent of the original's
// malloc(sizeof(pointer)) undersized-allocation bug to reproduce.
type record struct {
	elem   list.Elem
	fd     int
	handle fsys.File
}

// Table_t is one process's open-file table.
type Table_t struct {
	files  *list.List // owners are *record
	nextFd int
}

// NewTable returns an empty table; the first fd it allocates is
// defs.FirstUserFd (2), since 0 and 1 are reserved for stdin/stdout and
// never appear in the table (spec.md §4.I).
func NewTable() *Table_t {
	return &Table_t{files: list.New(), nextFd: defs.FirstUserFd}
}

// Insert allocates a fresh, monotonically increasing fd for handle and
// appends it to the table (spec.md §3: "fd values are per-process, start
// at 2, and monotonically increase; they are never recycled").
func (t *Table_t) Insert(handle fsys.File) int {
	r := &record{fd: t.nextFd, handle: handle}
	t.nextFd++
	t.files.PushBack(&r.elem, r)
	return r.fd
}

// Lookup returns the handle for fd, or nil if fd is not open in this
// table (includes fd 0 and 1, which this table never holds).
func (t *Table_t) Lookup(fd int) fsys.File {
	r := t.find(fd)
	if r == nil {
		return nil
	}
	return r.handle
}

func (t *Table_t) find(fd int) *record {
	var found *record
	t.files.Do(func(owner any) {
		if found != nil {
			return
		}
		r := owner.(*record)
		if r.fd == fd {
			found = r
		}
	})
	return found
}

// Close removes fd's record from the table and closes its handle.
// Closing an unknown fd is a silent no-op (spec.md §4.I, §7 kind 3;
// SPEC_FULL.md §7.1: the first-match-and-stop ambiguity the original's
// close handler had cannot arise here since Insert never produces
// duplicate fds).
func (t *Table_t) Close(fd int) {
	r := t.find(fd)
	if r == nil {
		return
	}
	t.files.Remove(&r.elem)
	r.handle.Close()
}

// CloseAll closes every open handle, in insertion order — the exit-time
// sweep spec.md §4.I describes ("on process exit, iterate the list,
// closing each handle"). Callers must already hold the global FS lock.
func (t *Table_t) CloseAll() {
	for {
		owner := t.files.PopFront()
		if owner == nil {
			return
		}
		owner.(*record).handle.Close()
	}
}

// Len reports how many descriptors are currently open.
func (t *Table_t) Len() int {
	return t.files.Len()
}
