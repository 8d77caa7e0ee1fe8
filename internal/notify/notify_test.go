package notify

import "testing"

func TestList_EmitOrder(t *testing.T) {
	var l List[int]
	var got []string

	l.Add(func(v int) { got = append(got, "a") })
	l.Add(func(v int) { got = append(got, "b") })
	l.Emit(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestList_Unsubscribe(t *testing.T) {
	var l List[string]
	calls := 0

	remove := l.Add(func(string) { calls++ })
	l.Emit("x")
	remove()
	remove() // second call is a no-op
	l.Emit("y")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestList_ReentrantUnsubscribe(t *testing.T) {
	var l List[int]
	calls := 0

	var remove func()
	remove = l.Add(func(int) {
		calls++
		remove()
	})

	l.Emit(1)
	l.Emit(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestList_NilCallback(t *testing.T) {
	var l List[int]
	remove := l.Add(nil)
	remove()
	l.Emit(1)
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}
