// Package list implements the intrusive doubly-linked ordered list spec.md
// §4.B requires: push-front, push-back, pop-front, comparator-driven
// insert-ordered, and remove-by-node, all O(1) except InsertOrdered which is
// O(n). "Intrusive" here means the link (*Elem) lives wherever the caller
// embeds it — typically a field on a TCB — so pushing a thread onto a ready
// queue never allocates; only the list's own sentinel node is heap-allocated,
// by New.
//
// Go has no portable offsetof to recover a containing struct from an
// embedded link the way Pintos's list_entry macro does, so each Elem carries
// an explicit back-reference (Owner) to whatever it is linking, set once at
// construction. This follows spec.md §9's guidance ("implement as arena+index
// or explicit null-guard, not raw back pointers") applied to list linkage: the
// pointer is one-directional (Elem -> owner) and never creates a reference
// cycle through the list structure itself.
//
// There is no standard-library or ecosystem type that provides comparator-
// based insert-ordered semantics over caller-owned link nodes;
// container/list boxes values and has no InsertOrdered. Hand-rolling this
// is the assignment itself (spec.md §4.B), not a fallback.
package list

// Elem is an intrusive link. Zero value is not usable; it must be linked by
// one of List's insert methods before use.
type Elem struct {
	prev, next *Elem
	in         *List
	Owner      any
}

// Linked reports whether e is currently part of some list.
func (e *Elem) Linked() bool {
	return e.in != nil
}

// List is a circular doubly-linked list with a sentinel root node, in the
// spirit of the head/tail sentinel pair in
// zhoujunjun-apple-xinu-go/include/queue.go's QueueHead/QueueTail, adapted
// from that package's array-index links to real pointers since our threads
// are heap objects, not table slots.
type List struct {
	root Elem
	len  int
}

// New returns an empty list.
func New() *List {
	l := &List{}
	l.root.next = &l.root
	l.root.prev = &l.root
	return l
}

// Len returns the number of elements linked into l.
func (l *List) Len() int {
	return l.len
}

// Empty reports whether l has no elements.
func (l *List) Empty() bool {
	return l.len == 0
}

func (l *List) insertAfter(at, e *Elem, owner any) {
	e.Owner = owner
	e.prev = at
	e.next = at.next
	at.next.prev = e
	at.next = e
	e.in = l
	l.len++
}

// PushFront links e at the head of l with the given owner.
func (l *List) PushFront(e *Elem, owner any) {
	l.insertAfter(&l.root, e, owner)
}

// PushBack links e at the tail of l with the given owner.
func (l *List) PushBack(e *Elem, owner any) {
	l.insertAfter(l.root.prev, e, owner)
}

// Less compares two owners; a Less implementation should impose a strict
// weak ordering so elements with equal keys keep FIFO order among
// themselves when inserted via InsertOrdered (ties resolved by insertion
// position, since InsertOrdered scans from the front and stops at the first
// strictly-lesser element).
type Less func(a, b any) bool

// InsertOrdered walks from the front and inserts e immediately before the
// first existing element cur for which less(owner, cur.Owner) is true, or
// at the back if there is none: the list stays sorted by the caller's
// ordering (descending, for the thread comparators) and ties keep the
// existing FIFO order (spec.md §4.B: "Comparators on threads order by
// effective_priority descending").
func (l *List) InsertOrdered(e *Elem, owner any, less Less) {
	at := l.root.prev
	for cur := l.root.next; cur != &l.root; cur = cur.next {
		if less(owner, cur.Owner) {
			at = cur.prev
			break
		}
		at = cur
	}
	l.insertAfter(at, e, owner)
}

// PopFront unlinks and returns the front element's owner, or nil if empty.
func (l *List) PopFront() any {
	if l.Empty() {
		return nil
	}
	e := l.root.next
	owner := e.Owner
	l.Remove(e)
	return owner
}

// Front returns the front element's owner without unlinking it, or nil if
// empty.
func (l *List) Front() any {
	if l.Empty() {
		return nil
	}
	return l.root.next.Owner
}

// Remove unlinks e from whatever list it is in. It is a no-op if e is not
// currently linked.
func (l *List) Remove(e *Elem) {
	if e.in != l {
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
	e.in = nil
	l.len--
}

// Do calls f with the owner of every element in l, front to back. f must not
// mutate l.
func (l *List) Do(f func(owner any)) {
	for cur := l.root.next; cur != &l.root; cur = cur.next {
		f(cur.Owner)
	}
}
