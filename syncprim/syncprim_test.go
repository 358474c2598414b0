package syncprim

import "sync"
import "testing"

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/sched"
import "github.com/cs140-go/kernel/thread"

// newTestKernel boots a scheduler context with an idle thread and returns
// it along with the bootstrap ("main") thread, which starts out Running
// and at PriDefault. Every interaction below with the scheduler must go
// through sched/syncprim primitives, never through raw goroutine
// synchronization (channels, sleeps): only one simulated thread is ever
// actually unparked at a time, so a real blocking call from inside a
// thread body would stall the whole simulated kernel.
func newTestKernel() (*sched.Kernel_t, *thread.Thread_t) {
	k := sched.New(sched.PolicyPriority, nil)
	main := k.Boot("main", defs.PriDefault)
	idle := k.Create("idle", defs.PriMin, main, k.RunIdle)
	k.IdleThread = idle
	return k, main
}

// TestDonationChain reproduces spec.md §8 scenario 1's essence: a
// low-priority thread L holds a lock, a high-priority thread H blocks
// acquiring it, and L's effective priority rises to H's for as long as H
// is waiting, dropping back once L releases.
func TestDonationChain(t *testing.T) {
	k, main := newTestKernel()
	lockA := NewLock(k)
	acquired := NewSema(k, 0)
	holdGate := NewSema(k, 0)
	finished := NewSema(k, 0)

	k.Create("L", 1, main, func(low *thread.Thread_t) {
		lockA.Acquire(low)
		acquired.Up(low)
		holdGate.Down(low)
		lockA.Release(low)
		finished.Up(low)
	})
	acquired.Down(main)

	if holder := lockA.HolderThread(); holder == nil || holder.EffectivePriority != 1 {
		t.Fatalf("holder priority before donation = %v, want 1", holder)
	}

	k.Create("H", 41, main, func(high *thread.Thread_t) {
		lockA.Acquire(high)
		lockA.Release(high)
		finished.Up(high)
	})

	if holder := lockA.HolderThread(); holder == nil || holder.EffectivePriority != 41 {
		t.Fatalf("holder priority after donation = %v, want 41", holder)
	}

	holdGate.Up(main)
	finished.Down(main)
	finished.Down(main)
}

// TestTransitiveDonationChain extends TestDonationChain to three levels
// (spec.md §8 scenario 1's full statement): L holds lockA, M holds lockB
// and blocks acquiring lockA, H blocks acquiring lockB. H's priority must
// propagate through M to L, not just to M.
func TestTransitiveDonationChain(t *testing.T) {
	k, main := newTestKernel()
	lockA := NewLock(k)
	lockB := NewLock(k)
	acquiredA := NewSema(k, 0)
	acquiredB := NewSema(k, 0)
	gateM := NewSema(k, 0)
	gateL := NewSema(k, 0)
	finished := NewSema(k, 0)

	// All three priorities are kept above main's own PriDefault so that
	// every sema.Up aimed at waking one of them actually yields the CPU to
	// it, the same convention TestDonationChain relies on for H.
	k.Create("L", 32, main, func(low *thread.Thread_t) {
		lockA.Acquire(low)
		acquiredA.Up(low)
		gateL.Down(low)
		lockA.Release(low)
		finished.Up(low)
	})
	acquiredA.Down(main)

	k.Create("M", 35, main, func(mid *thread.Thread_t) {
		lockB.Acquire(mid)
		acquiredB.Up(mid)
		gateM.Down(mid)
		lockA.Acquire(mid)
		lockB.Release(mid)
		lockA.Release(mid)
		finished.Up(mid)
	})
	acquiredB.Down(main)

	k.Create("H", 40, main, func(high *thread.Thread_t) {
		lockB.Acquire(high)
		lockB.Release(high)
		finished.Up(high)
	})

	// H is blocked acquiring lockB, so M (its holder) is boosted to 40.
	if holder := lockB.HolderThread(); holder == nil || holder.EffectivePriority != 40 {
		t.Fatalf("lockB holder priority after H's donation = %v, want 40", holder)
	}

	// Let M, now effectively 40, attempt lockA while still holding lockB:
	// L (lockA's holder) must inherit 40 transitively, not M's base of 35.
	gateM.Up(main)
	if holder := lockA.HolderThread(); holder == nil || holder.EffectivePriority != 40 {
		t.Fatalf("lockA holder priority after transitive donation = %v, want 40", holder)
	}
	if holder := lockB.HolderThread(); holder == nil || holder.EffectivePriority != 40 {
		t.Fatalf("lockB holder priority should remain 40 while M awaits lockA, got %v", holder)
	}

	// Release lockA: M wakes, finishes lockB's critical section and
	// releases it next, which is what finally lets H run.
	gateL.Up(main)
	finished.Down(main)
	finished.Down(main)
	finished.Down(main)

	if holder := lockA.HolderThread(); holder != nil {
		t.Fatalf("lockA should be free after all three threads finished, holder = %v", holder)
	}
}

// TestSemaFIFOByPriority reproduces spec.md §4.D's requirement that Up
// wakes the highest-priority waiter regardless of arrival order. Both
// waiters are given priority above the bootstrap thread so each is
// guaranteed to run (and block inside Down) before the bootstrap thread
// ever calls Up.
func TestSemaFIFOByPriority(t *testing.T) {
	k, main := newTestKernel()
	sem := NewSema(k, 0)

	var woke []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		woke = append(woke, s)
		mu.Unlock()
	}

	k.Create("low", 40, main, func(low *thread.Thread_t) {
		sem.Down(low)
		record("low")
	})
	k.Create("high", 50, main, func(high *thread.Thread_t) {
		sem.Down(high)
		record("high")
	})

	sem.Up(main)
	sem.Up(main)

	mu.Lock()
	defer mu.Unlock()
	if len(woke) != 2 || woke[0] != "high" || woke[1] != "low" {
		t.Fatalf("woke = %v, want [high low]", woke)
	}
}
