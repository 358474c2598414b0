// Package syncprim implements the higher-level blocking primitives built
// on top of the scheduler's block/unblock pair: a FIFO, priority-aware
// semaphore and a mutex-style lock with priority donation (spec.md §4.C,
// §4.D).
//
// Grounded on original_source/threads/synch.c's sema_down/sema_up/
// lock_acquire/lock_release, translated into the same shape
// mit-pdos-biscuit/biscuit/src/proc/wait.go uses for its own blocking
// primitive: a struct embedding a scheduler reference plus a waiter list,
// guarded by the scheduler's own critical section rather than a private
// mutex, since donation bookkeeping must see a globally consistent
// snapshot of every thread's priority.
package syncprim

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/list"
import "github.com/cs140-go/kernel/sched"
import "github.com/cs140-go/kernel/thread"

func byEffectivePriorityDesc(a, b any) bool {
	return a.(*thread.Thread_t).EffectivePriority > b.(*thread.Thread_t).EffectivePriority
}

// Sema is a counting semaphore whose waiter list is ordered by effective
// priority, so Up always wakes the highest-priority waiter (spec.md §4.D
// "sema_up wakes the highest-priority waiter, not simply the oldest").
type Sema struct {
	k       *sched.Kernel_t
	value   int
	waiters *list.List // owners are *thread.Thread_t, linked via ReadyElem
}

// NewSema returns a semaphore with the given initial value.
func NewSema(k *sched.Kernel_t, value int) *Sema {
	return &Sema{k: k, value: value, waiters: list.New()}
}

// Down blocks the calling thread until the semaphore's value is positive,
// then decrements it.
func (s *Sema) Down(self *thread.Thread_t) {
	for {
		acquired := false
		mustBlock := false
		s.k.WithLock(func() {
			if s.value > 0 {
				s.value--
				acquired = true
				return
			}
			s.waiters.InsertOrdered(&self.ReadyElem, self, byEffectivePriorityDesc)
			mustBlock = true
		})
		if acquired {
			return
		}
		if mustBlock {
			s.k.Block(self)
		}
		// Woken (or raced in and found value already > 0): loop back and
		// retry the decrement rather than assuming we were the one woken
		// by a matching Up, matching sema_down's own re-check loop.
	}
}

// Up increments the semaphore's value and, if a thread was waiting, wakes
// the highest-priority one and yields if that thread now outranks the
// caller (spec.md §4.D "sema_up yields if the woken thread now has higher
// effective priority than the caller").
func (s *Sema) Up(self *thread.Thread_t) {
	var woken *thread.Thread_t
	s.k.WithLock(func() {
		s.value++
		if !s.waiters.Empty() {
			woken = s.waiters.PopFront().(*thread.Thread_t)
			s.k.UnblockLocked(woken)
		}
	})
	if woken != nil && self != nil && woken.EffectivePriority > self.EffectivePriority {
		s.k.Yield(self)
	}
}

// Lock is a binary semaphore plus a holder pointer and donor list, giving
// lock_acquire/lock_release their priority-donation behavior (spec.md
// §4.C).
type Lock struct {
	k      *sched.Kernel_t
	sema   *Sema
	holder *thread.Thread_t
}

// NewLock returns an unheld lock.
func NewLock(k *sched.Kernel_t) *Lock {
	return &Lock{k: k, sema: NewSema(k, 1)}
}

// HolderThread implements thread.Locker.
func (l *Lock) HolderThread() *thread.Thread_t {
	var h *thread.Thread_t
	l.k.WithLock(func() { h = l.holder })
	return h
}

// Acquire blocks until l is free, then takes it. If l is currently held,
// self donates its effective priority up the holder chain before blocking
// (spec.md §4.C: "the donation chain is walked eagerly at acquire time,
// bounded to MaxDonationDepth hops to avoid an unbounded stall on a
// pathological cycle").
func (l *Lock) Acquire(self *thread.Thread_t) {
	l.k.WithLock(func() {
		if l.holder != nil && l.holder != self {
			self.WaitLock = l
			l.donate(self)
		}
	})
	l.sema.Down(self)
	l.k.WithLock(func() {
		l.holder = self
		self.WaitLock = nil
	})
}

// donate walks the chain of lock holders starting at self's target lock,
// raising every holder's effective priority to at least self's, up to
// MaxDonationDepth hops. Caller must hold the scheduler lock.
func (l *Lock) donate(self *thread.Thread_t) {
	cur := l
	donor := self
	for depth := 0; depth < defs.MaxDonationDepth; depth++ {
		if cur == nil || cur.holder == nil {
			return
		}
		holder := cur.holder
		holder.DonorsList.InsertOrdered(&donor.DonorElem, donor, byEffectivePriorityDesc)
		if donor.EffectivePriority > holder.EffectivePriority {
			holder.EffectivePriority = donor.EffectivePriority
			if holder.Status == thread.Ready {
				l.k.RequeueLocked(holder)
			}
		}
		nextLock, ok := holder.WaitLock.(*Lock)
		if !ok || nextLock == nil {
			return
		}
		cur = nextLock
		donor = holder
	}
}

// Release gives up l, recomputes self's effective priority by pruning
// every donor waiting specifically on this lock, and wakes the
// highest-priority waiter (spec.md §4.C "on release, re-derive effective
// priority as max(base_priority, donors still waiting on other locks)").
func (l *Lock) Release(self *thread.Thread_t) {
	l.k.WithLock(func() {
		l.holder = nil
		l.pruneDonors(self)
	})
	l.sema.Up(self)
}

// pruneDonors removes from self.DonorsList every thread whose WaitLock is
// l (they were donating specifically to acquire l, which self no longer
// holds), then recomputes self's effective priority as the max of its base
// priority and its remaining donors. Caller must hold the scheduler lock.
func (l *Lock) pruneDonors(self *thread.Thread_t) {
	var keep []*thread.Thread_t
	self.DonorsList.Do(func(owner any) {
		d := owner.(*thread.Thread_t)
		if lk, ok := d.WaitLock.(*Lock); !ok || lk != l {
			keep = append(keep, d)
		}
	})
	for self.DonorsList.Len() > 0 {
		self.DonorsList.PopFront()
	}
	for _, d := range keep {
		self.DonorsList.InsertOrdered(&d.DonorElem, d, byEffectivePriorityDesc)
	}
	newPriority := self.BasePriority
	if !self.DonorsList.Empty() {
		top := self.DonorsList.Front().(*thread.Thread_t)
		if top.EffectivePriority > newPriority {
			newPriority = top.EffectivePriority
		}
	}
	self.EffectivePriority = newPriority
}
