// Package thread defines the TCB (Thread_t): the single struct holding both
// scheduler state and, for user threads, process state — exactly as
// spec.md §3 describes and as original_source/threads/thread.c's
// struct thread does (no separate process struct). Grounded stylistically
// on mit-pdos-biscuit/biscuit/src/common/proc.go's Proc_t (fields grouped by
// concern, exported where other packages need them, a private lock guarding
// the parts only this package mutates directly) and
// mit-pdos-biscuit/biscuit/src/proc/wait.go's Wait_t-via-sync.Cond pattern
// for the rendezvous primitives a thread carries.
package thread

import "sync"

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/fd"
import "github.com/cs140-go/kernel/fixedpoint"
import "github.com/cs140-go/kernel/fsys"
import "github.com/cs140-go/kernel/list"
import "github.com/cs140-go/kernel/vm"

// Status is one of the four states spec.md §3 invariant 1-3 reasons about.
type Status int

const (
	Running Status = iota
	Ready
	Blocked
	Dying
)

func (s Status) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Ready:
		return "READY"
	case Blocked:
		return "BLOCKED"
	case Dying:
		return "DYING"
	default:
		return "UNKNOWN"
	}
}

// Locker is the minimal view of a lock that donation bookkeeping needs.
// thread.Thread_t.WaitLock holds this interface rather than a concrete
// *syncprim.Lock because syncprim depends on thread (it calls into the
// scheduler with *Thread_t); a concrete dependency the other way would
// cycle.
type Locker interface {
	HolderThread() *Thread_t
}

// Semaphore is the minimal view of a semaphore a thread needs to hold a
// reference to (child_process_lock), for the same cycle-breaking reason as
// Locker. The signature matches syncprim.Sema's own Down/Up exactly (both
// take the calling thread explicitly, since this simulation has no implicit
// "current thread" outside the scheduler), so *syncprim.Sema satisfies this
// interface with no adapter.
type Semaphore interface {
	Down(self *Thread_t)
	Up(self *Thread_t)
}

type Thread_t struct {
	mu sync.Mutex

	Tid    defs.Tid_t
	Name   string
	magic  uint32
	Status Status

	// Priority (spec.md §4.C, §4.E).
	EffectivePriority int
	BasePriority      int
	DonorsList        *list.List // owners are *Thread_t
	WaitLock          Locker     // non-nil iff blocked acquiring a contended lock

	// MLFQ accounting (spec.md §4.F).
	RecentCPU fixedpoint.Fix_t
	Nice      int

	// Queue linkage (spec.md §3 "Queue linkage"): one link for the ready
	// list, one for the MLFQ bucket, one for the global all-threads list.
	// DonorElem is a separate link from ReadyElem because a thread waiting
	// on a contended lock is linked into two lists at once — the lock
	// holder's DonorsList and the lock's own semaphore waiters — and a
	// single shared node can only ever belong to one list at a time
	// (matches Pintos's struct thread carrying a distinct donationelem
	// alongside its elem).
	ReadyElem list.Elem
	DonorElem list.Elem
	MLFQElem  list.Elem
	AllElem   list.Elem

	// Process fields (spec.md §3). New gives every thread, kernel or user,
	// an empty child list, an empty file table and exit status -1.
	Parent           *Thread_t  // weak: never freed through this pointer
	ProcessChildren  *list.List // owners are *proc.ChildProc_t, opaque here
	ChildProcessLock Semaphore
	TidWait          defs.Tid_t
	ExecutableFile   fsys.File // kept open for deny-write while the process runs
	Files            *fd.Table_t
	ExitStatus       int
	Pagedir          *vm.AddressSpace
	HasUserSpace     bool
}

// New allocates a blocked thread with the given name/priority. It does not
// link the thread into any list; callers (sched.Create) do that under the
// scheduler lock. parent may be nil for the bootstrap initial thread.
func New(tid defs.Tid_t, name string, priority int, parent *Thread_t) *Thread_t {
	t := &Thread_t{
		Tid:               tid,
		Name:              name,
		magic:             defs.ThreadMagic,
		Status:            Blocked,
		EffectivePriority: priority,
		BasePriority:      priority,
		DonorsList:        list.New(),
		ProcessChildren:   list.New(),
		Files:             fd.NewTable(),
		ExitStatus:        -1,
		Parent:            parent,
	}
	if parent != nil {
		// Supplemented feature (SPEC_FULL.md §6.1): inherit nice/recent_cpu
		// from the creating thread, matching original_source/threads/
		// thread.c's init_thread rather than always starting at the
		// system default.
		parent.mu.Lock()
		t.Nice = parent.Nice
		t.RecentCPU = parent.RecentCPU
		parent.mu.Unlock()
	}
	return t
}

// IsThread reports whether t looks like a live, uncorrupted TCB: the
// portable remnant of Pintos's is_thread(), which also checked a non-null
// pointer derived from rounding down the stack pointer. We have no raw
// pointer arithmetic to validate, so only the magic canary check survives,
// still useful to catch a zero-value Thread_t used by mistake.
func IsThread(t *Thread_t) bool {
	return t != nil && t.magic == defs.ThreadMagic
}

// RecentCPUPercent returns 100*recent_cpu, rounded to nearest — the value
// original_source/threads/thread.c's thread_get_recent_cpu reports to
// callers (SPEC_FULL.md §6.2).
func (t *Thread_t) RecentCPUPercent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.RecentCPU.MulInt(100).Round()
}

// Lock/Unlock guard the fields this package mutates outside of the
// scheduler's big lock (Nice/RecentCPU reads from other goroutines).
func (t *Thread_t) Lock()   { t.mu.Lock() }
func (t *Thread_t) Unlock() { t.mu.Unlock() }
