package trap

import "encoding/binary"
import "testing"

import "github.com/cs140-go/kernel/console"
import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/fsys"
import "github.com/cs140-go/kernel/proc"
import "github.com/cs140-go/kernel/sched"
import "github.com/cs140-go/kernel/thread"
import "github.com/cs140-go/kernel/vm"

func putWord(as *vm.AddressSpace, addr uintptr, v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	if err := as.WriteBuf(addr, buf); err != nil {
		panic(err)
	}
}

func newTestDispatcher(cons Device) (*sched.Kernel_t, *proc.Manager, *Dispatcher, *thread.Thread_t) {
	k := sched.New(sched.PolicyPriority, nil)
	fs := fsys.NewMemFS()
	mgr := proc.New(k, fs, nil, nil)
	k.Hook = mgr

	main := k.Boot("main", defs.PriDefault)
	mgr.InitThread(main)
	idle := k.Create("idle", defs.PriMin, main, k.RunIdle)
	k.IdleThread = idle

	d := New(mgr, cons, 4, nil)
	return k, mgr, d, main
}

// spec.md §8 scenario 3: a syscall number read from the kernel half of
// the address space forces exit(-1) on the offending thread, and a parent
// waiting on it observes -1.
func TestInvalidPointerForcesExit(t *testing.T) {
	_, mgr, d, main := newTestDispatcher(console.NewFake(""))

	child := mgr.Spawn(main, "victim", func(victim *thread.Thread_t) {
		victim.Pagedir = vm.New(0x1000, 64)
		d.Dispatch(victim, vm.KernelBoundary)
	})

	if status := mgr.Wait(main, child.Tid); status != -1 {
		t.Fatalf("Wait after invalid pointer = %d, want -1", status)
	}
}

// spec.md §8 scenario 6: write(1, "abc", 3) returns 3 and emits "abc" to
// the console without touching the FS lock.
func TestStdoutWriteBypassesFSLock(t *testing.T) {
	cons := console.NewFake("")
	_, _, d, main := newTestDispatcher(cons)
	main.Pagedir = vm.New(0x2000, 64)

	as := main.Pagedir
	as.WriteBuf(0x2000+40, []byte("abc"))
	putWord(as, 0x2000+0, uint32(defs.SysWrite))
	putWord(as, 0x2000+5*4, uint32(defs.StdoutFd))
	putWord(as, 0x2000+6*4, uint32(0x2000+40))
	putWord(as, 0x2000+7*4, 3)

	ret := d.Dispatch(main, 0x2000)
	if ret != 3 {
		t.Fatalf("Dispatch return = %d, want 3", ret)
	}
	if cons.Written() != "abc" {
		t.Fatalf("console got %q, want %q", cons.Written(), "abc")
	}
}

// spec.md §8 scenario: a full open/write/seek/read/close round trip
// through a real file, exercising the FS-lock path each of those calls
// takes.
func TestFileReadWriteRoundTrip(t *testing.T) {
	cons := console.NewFake("")
	_, mgr, d, main := newTestDispatcher(cons)
	main.Pagedir = vm.New(0x3000, 128)
	as := main.Pagedir
	mgr.FS.Create("greeting.txt", 0)

	const namePtr = uintptr(0x3000 + 80)
	as.WriteBuf(namePtr, []byte("greeting.txt\x00"))

	// open("greeting.txt") -> fd
	putWord(as, 0x3000+0, uint32(defs.SysOpen))
	putWord(as, 0x3000+1*4, uint32(namePtr))
	fd := d.Dispatch(main, 0x3000)
	if fd != uint32(defs.FirstUserFd) {
		t.Fatalf("open fd = %d, want %d", fd, defs.FirstUserFd)
	}

	const dataPtr = uintptr(0x3000 + 100)
	as.WriteBuf(dataPtr, []byte("hi"))
	putWord(as, 0x3000+0, uint32(defs.SysWrite))
	putWord(as, 0x3000+5*4, fd)
	putWord(as, 0x3000+6*4, uint32(dataPtr))
	putWord(as, 0x3000+7*4, 2)
	if n := d.Dispatch(main, 0x3000); n != 2 {
		t.Fatalf("write returned %d, want 2", n)
	}

	putWord(as, 0x3000+0, uint32(defs.SysSeek))
	putWord(as, 0x3000+4*4, fd)
	putWord(as, 0x3000+5*4, 0)
	d.Dispatch(main, 0x3000)

	putWord(as, 0x3000+0, uint32(defs.SysRead))
	putWord(as, 0x3000+5*4, fd)
	putWord(as, 0x3000+6*4, uint32(dataPtr))
	putWord(as, 0x3000+7*4, 2)
	if n := d.Dispatch(main, 0x3000); n != 2 {
		t.Fatalf("read returned %d, want 2", n)
	}
	got, _ := as.ReadBuf(dataPtr, 2)
	if string(got) != "hi" {
		t.Fatalf("read back %q, want %q", got, "hi")
	}

	putWord(as, 0x3000+0, uint32(defs.SysClose))
	putWord(as, 0x3000+1*4, fd)
	d.Dispatch(main, 0x3000)

	if main.Files.Lookup(int(fd)) != nil {
		t.Fatalf("fd %d should be closed", fd)
	}
}

// Reading from fd 0 serves queued console input without an FS lock.
func TestStdinReadServesConsoleInput(t *testing.T) {
	cons := console.NewFake("yo")
	_, _, d, main := newTestDispatcher(cons)
	main.Pagedir = vm.New(0x4000, 64)
	as := main.Pagedir

	const bufPtr = uintptr(0x4000 + 32)
	putWord(as, 0x4000+0, uint32(defs.SysRead))
	putWord(as, 0x4000+5*4, uint32(defs.StdinFd))
	putWord(as, 0x4000+6*4, uint32(bufPtr))
	putWord(as, 0x4000+7*4, 2)

	if n := d.Dispatch(main, 0x4000); n != 2 {
		t.Fatalf("read returned %d, want 2", n)
	}
	got, _ := as.ReadBuf(bufPtr, 2)
	if string(got) != "yo" {
		t.Fatalf("read back %q, want %q", got, "yo")
	}
}
