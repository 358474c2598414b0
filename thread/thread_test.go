package thread

import "testing"

import "github.com/cs140-go/kernel/defs"

func TestNewInheritsNiceAndRecentCPU(t *testing.T) {
	parent := New(1, "parent", defs.PriDefault, nil)
	parent.Nice = 5
	parent.RecentCPU = parent.RecentCPU.AddInt(42)

	child := New(2, "child", defs.PriDefault, parent)
	if child.Nice != 5 {
		t.Fatalf("child nice = %d, want 5", child.Nice)
	}
	if child.RecentCPU != parent.RecentCPU {
		t.Fatalf("child recent_cpu = %v, want %v", child.RecentCPU, parent.RecentCPU)
	}
}

func TestIsThread(t *testing.T) {
	tt := New(1, "t", defs.PriDefault, nil)
	if !IsThread(tt) {
		t.Fatalf("expected IsThread to be true")
	}
	if IsThread(nil) {
		t.Fatalf("nil should not be a thread")
	}
	var zero Thread_t
	if IsThread(&zero) {
		t.Fatalf("zero-value Thread_t should not pass IsThread")
	}
}
