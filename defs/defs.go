// Package defs holds the constants and small value types shared across the
// scheduler, synchronization, process, and syscall packages: priority and
// nice bands, tid/fd numbering, and the syscall table. Grounded on
// mit-pdos-biscuit/biscuit/src/defs/defs.go's role as the pack-wide shared
// constant package that every other biscuit package imports.
package defs

// Tid_t identifies a thread for its whole lifetime; tids are never reused.
type Tid_t int

// TidError is returned by thread creation when no tid/resources are
// available, mirroring Pintos's TID_ERROR sentinel.
const TidError Tid_t = -1

// Priority band (spec.md §6).
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63
)

// Nice band (spec.md §6).
const (
	NiceMin     = -20
	NiceMax     = 20
	NiceDefault = 0
)

// Scheduling constants (spec.md §4.E, §5).
const (
	TimeSlice  = 4   // ticks given to a thread before priorities_update_pending fires
	TimerFreq  = 100 // ticks per second
	ThreadMagic = 0xcd6abf4b
)

// MaxDonationDepth bounds the priority-donation chain walk (spec.md §4.C,
// §9 Open Question: "donation transitivity depth is not enumerated in the
// source; spec fixes it at 8").
const MaxDonationDepth = 8

// File descriptor numbering (spec.md §3, §4.I): 0 and 1 are reserved for
// stdin/stdout and never appear in a process's open-file table.
const (
	StdinFd      = 0
	StdoutFd     = 1
	FirstUserFd  = 2
)

// Clamp returns x bounded to [lo, hi].
func Clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Syscall numbers (spec.md §4.H table).
const (
	SysHalt = iota
	SysExit
	SysExec
	SysWait
	SysCreate
	SysRemove
	SysOpen
	SysFilesize
	SysRead
	SysWrite
	SysSeek
	SysTell
	SysClose
	NumSyscalls
)
