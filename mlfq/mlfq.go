// Package mlfq implements the 64-level multi-level feedback queue policy's
// periodic recomputation: load_avg, recent_cpu decay, and priority
// derivation (spec.md §4.F), plus the nice setter's MLFQ-specific
// preemption check.
//
// Grounded on original_source/threads/thread.c's
// thread_mlfqs_calculate_recent_cpu / thread_mlfqs_calculate_load_avg /
// thread_mlfqs_calculate_priority / thread_set_nice, translated to the
// fixedpoint package for the 17.14 arithmetic and to sched.Kernel_t for
// the per-thread iteration and requeue step the original does by hand
// over its all-threads list.
package mlfq

import "github.com/cs140-go/kernel/defs"
import "github.com/cs140-go/kernel/fixedpoint"
import "github.com/cs140-go/kernel/sched"
import "github.com/cs140-go/kernel/thread"

// frac is a small helper for building the rational constants the
// recompute equations use (59/60, 1/60, 2*recent_cpu+1, etc).
func frac(num, den int) fixedpoint.Fix_t {
	return fixedpoint.FromInt(num).DivInt(den)
}

// priorityFor computes PRI_MAX - recent_cpu/4 - nice*2, clamped to
// [PRI_MIN, PRI_MAX] (spec.md §4.F priority equation).
func priorityFor(recentCPU fixedpoint.Fix_t, nice int) int {
	p := fixedpoint.FromInt(defs.PriMax).
		Sub(recentCPU.DivInt(4)).
		SubInt(nice * 2)
	return defs.Clamp(p.Round(), defs.PriMin, defs.PriMax)
}

// RecomputePriority updates t.EffectivePriority (and t.BasePriority, which
// MLFQ mode keeps in lockstep since donation never applies under this
// policy) from its current recent_cpu/nice, requeueing it if it is
// currently Ready and the bucket changed. k must be locked by the caller
// via k.WithLock — this function is meant to be called from inside one.
func RecomputePriority(k *sched.Kernel_t, t *thread.Thread_t) {
	old := t.EffectivePriority
	p := priorityFor(t.RecentCPU, t.Nice)
	t.EffectivePriority = p
	t.BasePriority = p
	if old != p {
		k.RequeueFromLocked(t, old)
	}
}

// RecomputeAllPriorities runs RecomputePriority over every eligible thread
// (spec.md §4.F: "every fourth tick, for every thread except the three
// singleton helpers").
func RecomputeAllPriorities(k *sched.Kernel_t) {
	k.WithLock(func() {
		k.AllThreadsLocked(func(t *thread.Thread_t) {
			if k.IsSingletonLocked(t) {
				return
			}
			RecomputePriority(k, t)
		})
		// SPEC_FULL.md §6.4: the recompute clears its own pending flag,
		// rather than the caller clearing it before calling, so a thread
		// that sets the flag while this pass is already running is not
		// silently dropped.
		k.PrioritiesUpdatePending = false
	})
}

// RecomputeLoadAvg updates k.LoadAvg from the current ready-thread count
// (spec.md §4.F: "load_avg := (59/60)*load_avg + (1/60)*ready_threads,
// recomputed once per second"). ready is the count of Ready-or-Running
// threads excluding the three singletons (sched.Kernel_t.ReadyCount).
func RecomputeLoadAvg(k *sched.Kernel_t, ready int) fixedpoint.Fix_t {
	cur := k.LoadAvgLocked()
	next := frac(59, 60).Mul(cur).Add(frac(1, 60).MulInt(ready))
	k.SetLoadAvgLocked(next)
	return next
}

// RecomputeRecentCPU updates t's recent_cpu from the current load_avg
// (spec.md §4.F: "recent_cpu := (2*load_avg)/(2*load_avg+1) * recent_cpu +
// nice, recomputed once per second for every thread"). It performs only
// the once-a-second decay; the running thread's per-tick +1 lives in
// sched.Kernel_t.Tick.
func RecomputeRecentCPU(loadAvg fixedpoint.Fix_t, t *thread.Thread_t) {
	twiceLoad := loadAvg.MulInt(2)
	coeff := twiceLoad.Div(twiceLoad.AddInt(1))
	t.RecentCPU = coeff.Mul(t.RecentCPU).AddInt(t.Nice)
}

// RecomputeAllRecentCPU runs RecomputeRecentCPU over every eligible thread
// (spec.md §4.F: eligibility excludes idle_thread, the MLFQ helper, and the
// timer-wakeup helper — original_source/threads/thread.c excludes exactly
// these three from its own recent_cpu recompute pass, invariant 6).
func RecomputeAllRecentCPU(k *sched.Kernel_t) {
	k.WithLock(func() {
		loadAvg := k.LoadAvgLocked()
		k.AllThreadsLocked(func(t *thread.Thread_t) {
			if k.IsSingletonLocked(t) {
				return
			}
			RecomputeRecentCPU(loadAvg, t)
		})
		k.RecentCPUUpdatePending = false
	})
}

// RunPendingUpdates runs whichever of the once-a-second (load_avg and
// recent_cpu decay) and every-TimeSlice (priority) recomputes are
// currently pending. This is the body sched.Kernel_t.MLFQSThread calls
// each time Tick wakes it (spec.md §4.F's helper thread).
func RunPendingUpdates(k *sched.Kernel_t) {
	var recentPending, priPending bool
	k.WithLock(func() {
		recentPending = k.RecentCPUUpdatePending
		priPending = k.PrioritiesUpdatePending
	})
	if recentPending {
		ready := k.ReadyCount()
		k.WithLock(func() {
			RecomputeLoadAvg(k, ready)
		})
		RecomputeAllRecentCPU(k)
	}
	if priPending {
		RecomputeAllPriorities(k)
	}
}

// SetNice implements thread_set_nice: sets t's nice value, recomputes its
// priority immediately, and yields if some other ready thread now
// strictly outranks it (SPEC_FULL.md §6.3's supplemented preemption check
// against the highest non-empty MLFQ bucket, distinct from priority
// mode's ready-list-front check).
func SetNice(k *sched.Kernel_t, t *thread.Thread_t, nice int) {
	nice = defs.Clamp(nice, defs.NiceMin, defs.NiceMax)
	shouldYield := false
	k.WithLock(func() {
		t.Nice = nice
		old := t.EffectivePriority
		p := priorityFor(t.RecentCPU, t.Nice)
		t.EffectivePriority = p
		t.BasePriority = p
		if old != p {
			k.RequeueFromLocked(t, old)
		}
		if p < k.HighestReadyPriorityLocked() {
			shouldYield = true
		}
	})
	if shouldYield {
		k.Yield(t)
	}
}
