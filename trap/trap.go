// Package trap implements the syscall dispatcher (spec.md §4.H): it reads
// the syscall number and argument words off a thread's simulated user
// stack, validates every pointer argument against that thread's address
// space before dereferencing it, and dispatches to the scheduler,
// process-management, filesystem, and console packages.
//
// Grounded on mit-pdos-biscuit/biscuit/src/kernel/syscall.go's Syscall
// dispatch switch (a flat numeric switch over defs.SYS_* constants, one
// case per handler, with a default case that kills the calling thread)
// and on original_source/userprog/syscall.c's argument-word-offset
// convention, which spec.md §4.H's table preserves exactly.
package trap

import "context"

import "github.com/sirupsen/logrus"
import "golang.org/x/sync/semaphore"

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/proc"
import "github.com/cs140-go/kernel/thread"

const wordSize = uintptr(4)

// Dispatcher owns everything a syscall implementation needs beyond the
// calling thread itself.
type Dispatcher struct {
	Proc    *proc.Manager
	Console Device
	// Halt is called for SYS_HALT; nil means halt does nothing beyond
	// logging, since powering off a hosted process is cmd/kernel's call,
	// not this package's (spec.md §1 "the CLI/boot path" is out of scope
	// here).
	Halt func()
	// admission bounds how many threads may be inside Dispatch at once
	// (SPEC_FULL.md §4's golang.org/x/sync/semaphore wiring), standing in
	// for mit-pdos-biscuit/biscuit/src/res's hand-rolled reservation
	// counters.
	admission *semaphore.Weighted
	Log       *logrus.Logger
}

// Device is the subset of package console's Device this package needs,
// declared locally so trap does not need to import console's Stdio/Fake
// types, only the contract.
type Device interface {
	Putbuf(buf []byte)
	Getc() byte
}

// New returns a Dispatcher admitting at most maxConcurrent threads into
// Dispatch at a time.
func New(p *proc.Manager, cons Device, maxConcurrent int64, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{Proc: p, Console: cons, admission: semaphore.NewWeighted(maxConcurrent), Log: log}
}

// exitNow terminates self with the given status and never returns control
// to the caller (spec.md §4.H: "on rejection the dispatcher forces
// exit(-1) on the calling thread, which does not return").
func (d *Dispatcher) exitNow(self *thread.Thread_t, status int) uint32 {
	d.Proc.Exit(self, status)
	panic("trap: exitNow's call to Proc.Exit returned")
}

func (d *Dispatcher) argWord(self *thread.Thread_t, sp uintptr, offset int) uint32 {
	v, err := self.Pagedir.ReadWord(sp + uintptr(offset)*wordSize)
	if err != nil {
		d.exitNow(self, -1)
	}
	return v
}

func (d *Dispatcher) argString(self *thread.Thread_t, sp uintptr, offset int) string {
	ptr := uintptr(d.argWord(self, sp, offset))
	s, err := self.Pagedir.ReadCString(ptr)
	if err != nil {
		d.exitNow(self, -1)
	}
	return s
}

// Dispatch reads the syscall number from sp+0 and its arguments per
// spec.md §4.H's table, runs the call, and returns the value to write into
// the trap frame's return register (ignored by calls with no return
// value).
func (d *Dispatcher) Dispatch(self *thread.Thread_t, sp uintptr) uint32 {
	ctx := context.Background()
	if err := d.admission.Acquire(ctx, 1); err != nil {
		return d.exitNow(self, -1)
	}
	defer d.admission.Release(1)

	if !self.Pagedir.Valid(sp, 4) {
		return d.exitNow(self, -1)
	}
	sysno := d.argWord(self, sp, 0)

	switch sysno {
	case uint32(defs.SysHalt):
		if d.Halt != nil {
			d.Halt()
		}
		return 0
	case uint32(defs.SysExit):
		status := int32(d.argWord(self, sp, 1))
		return d.exitNow(self, int(status))
	case uint32(defs.SysExec):
		cmd := d.argString(self, sp, 1)
		return uint32(d.Proc.Exec(self, cmd))
	case uint32(defs.SysWait):
		tid := defs.Tid_t(int32(d.argWord(self, sp, 1)))
		return uint32(int32(d.Proc.Wait(self, tid)))
	case uint32(defs.SysCreate):
		name := d.argString(self, sp, 4)
		size := int(d.argWord(self, sp, 5))
		return d.sysCreate(self, name, size)
	case uint32(defs.SysRemove):
		name := d.argString(self, sp, 1)
		return d.sysRemove(self, name)
	case uint32(defs.SysOpen):
		name := d.argString(self, sp, 1)
		return d.sysOpen(self, name)
	case uint32(defs.SysFilesize):
		fd := int(d.argWord(self, sp, 1))
		return d.sysFilesize(self, fd)
	case uint32(defs.SysRead):
		fd := int(d.argWord(self, sp, 5))
		buf := uintptr(d.argWord(self, sp, 6))
		size := int(d.argWord(self, sp, 7))
		return d.sysRead(self, fd, buf, size)
	case uint32(defs.SysWrite):
		fd := int(d.argWord(self, sp, 5))
		buf := uintptr(d.argWord(self, sp, 6))
		size := int(d.argWord(self, sp, 7))
		return d.sysWrite(self, fd, buf, size)
	case uint32(defs.SysSeek):
		fd := int(d.argWord(self, sp, 4))
		pos := int(d.argWord(self, sp, 5))
		return d.sysSeek(self, fd, pos)
	case uint32(defs.SysTell):
		fd := int(d.argWord(self, sp, 1))
		return d.sysTell(self, fd)
	case uint32(defs.SysClose):
		fd := int(d.argWord(self, sp, 1))
		d.sysClose(self, fd)
		return 0
	default:
		if d.Log != nil {
			d.Log.WithFields(logrus.Fields{"sysno": sysno, "tid": self.Tid}).Warn("unrecognized syscall")
		}
		return d.exitNow(self, -1)
	}
}
