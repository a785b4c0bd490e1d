package invariant

import (
	"strings"
	"testing"
)

func TestCheckPassesSilently(t *testing.T) {
	var calls int
	prev := SetHandler(HandlerFunc(func(ViolationError) { calls++ }))
	defer SetHandler(prev)

	Check(true, "never")
	Checkf(true, "never %d", 1)

	if calls != 0 {
		t.Fatalf("handler called %d times, want 0", calls)
	}
}

func TestViolationsReachHandler(t *testing.T) {
	var got []string
	prev := SetHandler(HandlerFunc(func(err ViolationError) { got = append(got, err.Statement) }))
	defer SetHandler(prev)

	Check(false, "plain")
	Checkf(false, "index %d out of range", 42)
	Violate("direct")
	Violatef("task %q broken", "t1")

	want := []string{"plain", "index 42 out of range", "direct", `task "t1" broken`}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDefaultHandlerPanics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(ViolationError)
		if !ok {
			t.Fatalf("recovered %T, want ViolationError", r)
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Fatalf("error %q does not mention statement", err.Error())
		}
	}()
	Violate("boom")
}
