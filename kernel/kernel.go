// Package kernel assembles the boot-time singletons spec.md §3 lists
// (initial/idle/mlfqs/wakeup threads, the ready structures, the global
// filesystem lock) into one running system, and exposes the Tick entry
// point a driver calls on every simulated timer interrupt.
//
// Grounded on mit-pdos-biscuit/biscuit/src/kernel/main.go's Main(), which
// plays the same role for the real kernel: construct every subsystem once,
// wire them together, then hand off to the scheduler — simplified here
// since there is no real hardware to probe or bring up.
package kernel

import "github.com/sirupsen/logrus"

import "github.com/cs140-go/kernel/console"
import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/fsys"
import "github.com/cs140-go/kernel/mlfq"
import "github.com/cs140-go/kernel/proc"
import "github.com/cs140-go/kernel/sched"
import "github.com/cs140-go/kernel/thread"
import "github.com/cs140-go/kernel/trap"

// MaxConcurrentSyscalls bounds trap.Dispatcher's admission semaphore
// (SPEC_FULL.md §4). It has no equivalent in the original single-CPU
// design — there, only one thread is ever inside the syscall layer by
// construction — but it gives the same "admit, or make the caller wait"
// resource-bounding shape this simulation can actually exercise even
// though every thread body still runs one at a time.
const MaxConcurrentSyscalls = 8

// System is everything booted: the scheduler, process manager, and
// syscall dispatcher, wired to a filesystem and console.
type System struct {
	K       *sched.Kernel_t
	Proc    *proc.Manager
	Trap    *trap.Dispatcher
	Console console.Device
	Log     *logrus.Logger
}

// Boot constructs a System under the given policy, filesystem, console,
// and program loader (spec.md §6's Loader contract, realized here as
// proc.Loader since this module has no ELF reader). log may be nil.
func Boot(policy sched.Policy, fs fsys.Filesystem, cons console.Device, load proc.Loader, log *logrus.Logger) *System {
	k := sched.New(policy, log)
	mgr := proc.New(k, fs, load, log)
	k.Hook = mgr

	main := k.Boot("main", defs.PriDefault)
	mgr.InitThread(main)
	k.InitialThread = main

	idle := k.Create("idle", defs.PriMin, main, k.RunIdle)
	k.IdleThread = idle

	// The timer-wakeup helper (spec.md §3 "wakeup_thread") stands in for a
	// sleep-queue driver; there is no timer interrupt controller in this
	// module (spec.md §1 "Out of scope"), so it parks itself permanently
	// right after boot. It still counts as one of the three non-reapable
	// singletons excluded from MLFQ accounting (spec.md §3 invariant 6).
	wakeup := k.Create("wakeup-helper", defs.PriMax, main, func(t *thread.Thread_t) {
		k.Block(t)
	})
	k.WakeupThread = wakeup

	if policy == sched.PolicyMLFQS {
		mlfqs := k.Create("mlfqs-helper", defs.PriMax, main, mlfqsHelperBody(k))
		k.MLFQSThread = mlfqs
	}

	dispatcher := trap.New(mgr, cons, MaxConcurrentSyscalls, log)

	return &System{K: k, Proc: mgr, Trap: dispatcher, Console: cons, Log: log}
}

// mlfqsHelperBody is spec.md §4.F's helper-thread loop: block, and on
// every wakeup run whichever recomputes are pending.
func mlfqsHelperBody(k *sched.Kernel_t) func(t *thread.Thread_t) {
	return func(t *thread.Thread_t) {
		for {
			k.Block(t)
			mlfq.RunPendingUpdates(k)
		}
	}
}

// Tick drives the simulated timer interrupt (spec.md §4.E "Tick
// handler"). A driver (cmd/kernel's boot loop, or a test) calls this once
// per simulated tick.
func (s *System) Tick() {
	s.K.Tick()
}
