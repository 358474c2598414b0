// Package proc implements child-process tracking and the exec/wait/exit
// rendezvous (spec.md §4.G). It is grounded on
// mit-pdos-biscuit/biscuit/src/proc/proc.go's Proc_t/Wait_t split between a
// process's own bookkeeping and its children's reaped-status records, but
// collapsed to the single TCB spec.md §3 describes: there is no separate
// Proc_t, so the bookkeeping here operates directly on thread.Thread_t's
// process fields.
package proc

import "github.com/google/shlex"
import "github.com/sirupsen/logrus"

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/fsys"
import "github.com/cs140-go/kernel/list"
import "github.com/cs140-go/kernel/sched"
import "github.com/cs140-go/kernel/syncprim"
import "github.com/cs140-go/kernel/thread"

// ChildProc_t is the record a parent keeps for each child it has spawned
// (spec.md §3 "Child-process record"). thread is a weak back-reference to
// the live child TCB, kept only so a parent can null the child's Parent
// pointer on its own exit (spec.md §9 "Cyclic parent/child references":
// "implement as ... explicit null-guard, not raw back pointers" — we still
// hold a raw pointer, but only ever use it to clear the other side, never
// to reach back into a freed thread).
type ChildProc_t struct {
	elem       list.Elem
	Tid        defs.Tid_t
	ExitStatus int
	DidExecute bool
	thread     *thread.Thread_t
}

// Loader is the external "create a user address space and a runnable
// thread from argv" contract spec.md §6 calls process_execute. This module
// has no ELF loader (spec.md §1 "Out of scope"), so Manager is configured
// with a table of named program bodies standing in for compiled
// executables; Loader is what actually turns a resolved program body into
// a running child thread.
type Loader func(parent *thread.Thread_t, argv []string) (body func(t *thread.Thread_t), ok bool)

// Manager owns the pieces exec/wait/exit share: the scheduler, the global
// filesystem lock, the filesystem itself, and the program loader. It
// implements sched.Hook so the scheduler calls back into it on every
// thread exit (spec.md §4.E "exit: release per-process resources via the
// external process hook").
type Manager struct {
	K      *sched.Kernel_t
	FSLock *syncprim.Lock
	FS     fsys.Filesystem
	Load   Loader
	Log    *logrus.Logger
}

// New returns a Manager wired to k, the given filesystem, and the given
// loader. fsLock is a fresh, unheld syncprim.Lock guarding fs (spec.md §3
// "Global state": "a single mutex guarding all filesystem operations").
func New(k *sched.Kernel_t, fs fsys.Filesystem, load Loader, log *logrus.Logger) *Manager {
	return &Manager{K: k, FSLock: syncprim.NewLock(k), FS: fs, Load: load, Log: log}
}

// InitThread finishes initializing a thread for process-level bookkeeping:
// it gives it a real child_process_lock. Every thread Manager ever creates
// or boots must pass through this once, since thread.New leaves
// ChildProcessLock nil (package thread cannot reference package syncprim
// without cycling back through sched).
func (m *Manager) InitThread(t *thread.Thread_t) {
	t.ChildProcessLock = syncprim.NewSema(m.K, 0)
}

func findChild(parent *thread.Thread_t, tid defs.Tid_t) *ChildProc_t {
	var found *ChildProc_t
	parent.ProcessChildren.Do(func(owner any) {
		if found != nil {
			return
		}
		c := owner.(*ChildProc_t)
		if c.Tid == tid {
			found = c
		}
	})
	return found
}

// Spawn creates a new child thread running body, records it in parent's
// process_children, and returns the child. Under strict priority, priority
// is inherited from parent's base priority, matching thread_create's
// caller-supplied priority in the original when exec doesn't otherwise
// specify one. Under MLFQ the child is created at PRI_MAX rather than at
// the parent's priority; its nice and recent_cpu are still inherited from
// the parent by thread.New, and its priority is re-derived from them at
// the next MLFQ priority recompute.
//
// The child's ChildProcessLock and its parent-side ChildProc_t record are
// wired up from inside sched.Kernel_t.CreateWithSetup's setup hook, before
// the child is made Ready: under MLFQ the child is created at PRI_MAX,
// which always outranks an ordinary parent, so the scheduler yields to it
// as the very last step of Create — if that yield ran before this
// bookkeeping existed, a child that exits on that first turn would find no
// record to report its status into, and a parent that later waits on it
// would block forever.
func (m *Manager) Spawn(parent *thread.Thread_t, name string, body func(t *thread.Thread_t)) *thread.Thread_t {
	return m.spawn(parent, name, body, nil)
}

// SpawnExecutable is Spawn, but additionally hands the child f as its own
// open executable file, deny-write, for as long as it runs (spec.md §4.I,
// thread.Thread_t.ExecutableFile's doc comment: "kept open for deny-write
// while the process runs"). f must already be open on name; Exec is the
// only caller, and OnExit is what eventually calls AllowWrite and Close on
// it.
func (m *Manager) SpawnExecutable(parent *thread.Thread_t, name string, body func(t *thread.Thread_t), f fsys.File) *thread.Thread_t {
	f.DenyWrite()
	return m.spawn(parent, name, body, f)
}

func (m *Manager) spawn(parent *thread.Thread_t, name string, body func(t *thread.Thread_t), execFile fsys.File) *thread.Thread_t {
	priority := parent.BasePriority
	if m.K.Policy == sched.PolicyMLFQS {
		priority = defs.PriMax
	}
	child := m.K.CreateWithSetup(name, priority, parent, body, func(c *thread.Thread_t) {
		m.InitThread(c)
		c.ExecutableFile = execFile
		rec := &ChildProc_t{Tid: c.Tid, ExitStatus: -1, thread: c}
		parent.ProcessChildren.PushBack(&rec.elem, rec)
	})
	return child
}

// Exec implements spec.md §4.G's exec(cmdline): tokenize cmdline, then
// under the FS lock probe-open and close the named program to confirm it
// exists (SPEC_FULL.md §6.5's probe-open/close dance), release the lock,
// hand off to the loader, and re-open the program as the child's
// executable before spawning it. Returns the new child's tid, or -1 on any failure — a bad
// cmdline, a missing program file, or a loader that doesn't recognize the
// resolved name never forks a child.
func (m *Manager) Exec(self *thread.Thread_t, cmdline string) defs.Tid_t {
	argv, err := shlex.Split(cmdline)
	if err != nil || len(argv) == 0 {
		return defs.TidError
	}
	name := argv[0]

	m.FSLock.Acquire(self)
	f, openErr := m.FS.Open(name)
	if openErr == nil {
		f.Close()
	}
	m.FSLock.Release(self)
	if openErr != nil {
		if m.Log != nil {
			m.Log.WithFields(logrus.Fields{"cmdline": cmdline}).Warn("exec: program not found")
		}
		return defs.TidError
	}

	body, ok := m.Load(self, argv)
	if !ok {
		if m.Log != nil {
			m.Log.WithFields(logrus.Fields{"name": name}).Warn("exec: no loader entry for program")
		}
		return defs.TidError
	}

	m.FSLock.Acquire(self)
	execFile, execErr := m.FS.Open(name)
	m.FSLock.Release(self)
	if execErr != nil {
		if m.Log != nil {
			m.Log.WithFields(logrus.Fields{"name": name}).Warn("exec: executable vanished between probe and handoff")
		}
		return defs.TidError
	}

	child := m.SpawnExecutable(self, name, body, execFile)
	return child.Tid
}

// Wait implements spec.md §4.G's wait(child_tid): reap a finished child's
// exit status, blocking if it hasn't exited yet. Returns -1 if tid names
// no live child record — including a second wait on an already-reaped
// child, spec.md §8's "wait(tid) called twice with the same tid returns
// -1 on the second call".
func (m *Manager) Wait(self *thread.Thread_t, tid defs.Tid_t) int {
	rec := findChild(self, tid)
	if rec == nil {
		return -1
	}
	self.TidWait = tid
	if !rec.DidExecute {
		self.ChildProcessLock.Down(self)
	}
	status := rec.ExitStatus
	self.ProcessChildren.Remove(&rec.elem)
	self.TidWait = 0
	return status
}

// Exit implements spec.md §4.G's exit(status): set own exit_status and
// terminate. All of the parent-signaling and resource-release work spec.md
// describes as part of exit happens in OnExit, which the scheduler invokes
// as part of tearing the thread down; Exit itself never returns.
func (m *Manager) Exit(self *thread.Thread_t, status int) {
	self.ExitStatus = status
	m.K.Exit(self)
	panic("proc.Exit: control returned after the scheduler tore the thread down")
}

// OnExit implements sched.Hook: spec.md §4.E/§4.G's exit-time bookkeeping.
// It signals a waiting parent, severs the weak parent links of any
// surviving children, discards this thread's own child records, and
// closes its open files and executable, all before the scheduler removes
// it from the all-threads list.
func (m *Manager) OnExit(t *thread.Thread_t) {
	if t.Parent != nil {
		if rec := findChild(t.Parent, t.Tid); rec != nil {
			rec.DidExecute = true
			rec.ExitStatus = t.ExitStatus
			if t.Parent.TidWait == t.Tid {
				t.Parent.ChildProcessLock.Up(t)
			}
		}
	}

	t.ProcessChildren.Do(func(owner any) {
		c := owner.(*ChildProc_t)
		if c.thread != nil {
			c.thread.Parent = nil
		}
	})
	for t.ProcessChildren.Len() > 0 {
		t.ProcessChildren.PopFront()
	}

	if t.Files != nil {
		m.FSLock.Acquire(t)
		t.Files.CloseAll()
		if t.ExecutableFile != nil {
			t.ExecutableFile.AllowWrite()
			t.ExecutableFile.Close()
			t.ExecutableFile = nil
		}
		m.FSLock.Release(t)
	}

	if m.Log != nil {
		m.Log.WithFields(logrus.Fields{"tid": t.Tid, "name": t.Name, "status": t.ExitStatus}).Info("thread exited")
	}
}

// Activate implements sched.Hook; this module has no real page directory
// to swap in (spec.md §1 "Out of scope: the page directory and
// virtual-memory mapping queries"), so there is nothing to do beyond what
// the scheduler already tracks as the current thread.
func (m *Manager) Activate(t *thread.Thread_t) {}
