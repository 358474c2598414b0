package console

import "testing"

func TestFakePutbufAccumulates(t *testing.T) {
	c := NewFake("")
	c.Putbuf([]byte("abc"))
	c.Putbuf([]byte("def"))
	if got := c.Written(); got != "abcdef" {
		t.Fatalf("Written = %q, want %q", got, "abcdef")
	}
}

func TestFakeGetcServesQueuedInput(t *testing.T) {
	c := NewFake("hi")
	if g := c.Getc(); g != 'h' {
		t.Fatalf("Getc = %q, want 'h'", g)
	}
	if g := c.Getc(); g != 'i' {
		t.Fatalf("Getc = %q, want 'i'", g)
	}
}

func TestFakeGetcPanicsWhenExhausted(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on exhausted input")
		}
	}()
	NewFake("").Getc()
}
