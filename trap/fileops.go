package trap

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/thread"

// negOne is -1 written as the unsigned word the trap frame's return
// register actually holds.
const negOne = uint32(0xFFFFFFFF)

func (d *Dispatcher) sysCreate(self *thread.Thread_t, name string, size int) uint32 {
	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	if err := d.Proc.FS.Create(name, size); err != nil {
		return 0
	}
	return 1
}

func (d *Dispatcher) sysRemove(self *thread.Thread_t, name string) uint32 {
	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	if err := d.Proc.FS.Remove(name); err != nil {
		return 0
	}
	return 1
}

// sysOpen implements spec.md §4.H's OPEN: allocates a fd and appends it to
// the calling thread's file table (spec.md §4.I).
func (d *Dispatcher) sysOpen(self *thread.Thread_t, name string) uint32 {
	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	f, err := d.Proc.FS.Open(name)
	if err != nil {
		return negOne
	}
	return uint32(self.Files.Insert(f))
}

func (d *Dispatcher) sysFilesize(self *thread.Thread_t, fd int) uint32 {
	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	f := self.Files.Lookup(fd)
	if f == nil {
		return negOne
	}
	return uint32(f.Length())
}

// sysRead implements spec.md §4.H's READ: fd=0 reads from the console
// (keyboard) with no FS lock; any other fd reads the named file handle
// under the FS lock, then copies the bytes back into the caller's address
// space.
func (d *Dispatcher) sysRead(self *thread.Thread_t, fd int, bufPtr uintptr, size int) uint32 {
	if fd == defs.StdinFd {
		data := make([]byte, size)
		for i := range data {
			data[i] = d.Console.Getc()
		}
		if err := self.Pagedir.WriteBuf(bufPtr, data); err != nil {
			return d.exitNow(self, -1)
		}
		return uint32(size)
	}

	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	f := self.Files.Lookup(fd)
	if f == nil {
		return negOne
	}
	data := make([]byte, size)
	n, _ := f.Read(data)
	if err := self.Pagedir.WriteBuf(bufPtr, data[:n]); err != nil {
		return d.exitNow(self, -1)
	}
	return uint32(n)
}

// sysWrite implements spec.md §4.H's WRITE: fd=1 writes straight to the
// console with no FS lock (spec.md §4.H "console writes do not" acquire
// it); any other fd writes the named file handle under the FS lock.
func (d *Dispatcher) sysWrite(self *thread.Thread_t, fd int, bufPtr uintptr, size int) uint32 {
	data, err := self.Pagedir.ReadBuf(bufPtr, size)
	if err != nil {
		return d.exitNow(self, -1)
	}

	if fd == defs.StdoutFd {
		d.Console.Putbuf(data)
		return uint32(size)
	}

	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	f := self.Files.Lookup(fd)
	if f == nil {
		return negOne
	}
	n, _ := f.Write(data)
	return uint32(n)
}

func (d *Dispatcher) sysSeek(self *thread.Thread_t, fd, pos int) uint32 {
	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	if f := self.Files.Lookup(fd); f != nil {
		f.Seek(pos)
	}
	return 0
}

// sysTell implements SPEC_FULL.md §7's resolved open question: the result
// is always written to the return register, unlike the original handler
// which computed it and dropped it.
func (d *Dispatcher) sysTell(self *thread.Thread_t, fd int) uint32 {
	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	f := self.Files.Lookup(fd)
	if f == nil {
		return negOne
	}
	return uint32(f.Tell())
}

func (d *Dispatcher) sysClose(self *thread.Thread_t, fd int) {
	d.Proc.FSLock.Acquire(self)
	defer d.Proc.FSLock.Release(self)
	self.Files.Close(fd)
}
