package unit

import (
	"fmt"
	"strings"
	"sync"
)

// FaultPolicy selects what Run does with a panic recovered from a handler.
type FaultPolicy int

const (
	// FaultRepanic re-raises the first recovered panic on the goroutine
	// that called Run, after the daemon loop has returned.
	FaultRepanic FaultPolicy = iota
	// FaultReturn returns the first recovered panic from Run as a *Fault.
	FaultReturn
)

func (p FaultPolicy) String() string {
	switch p {
	case FaultRepanic:
		return "repanic"
	case FaultReturn:
		return "return"
	default:
		return fmt.Sprintf("FaultPolicy(%d)", int(p))
	}
}

// ParseFaultPolicy maps a configuration name onto a FaultPolicy.
func ParseFaultPolicy(name string) (FaultPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "repanic":
		return FaultRepanic, nil
	case "return":
		return FaultReturn, nil
	default:
		return FaultRepanic, fmt.Errorf("unit: unknown fault policy %q", name)
	}
}

// Fault is a handler panic that was stopped at the native boundary.
type Fault struct {
	// Value is the first recovered panic value.
	Value any
	// Stack is the stack of the goroutine at the first panic.
	Stack []byte
	// Count is the number of panics recovered during the Run call.
	Count int
}

func (f *Fault) Error() string {
	if f.Count > 1 {
		return fmt.Sprintf("unit: handler panic: %v (%d panics total)", f.Value, f.Count)
	}
	return fmt.Sprintf("unit: handler panic: %v", f.Value)
}

// Unwrap exposes the panic value when it is an error.
func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// faultSlot holds the deferred fault of one context. Only the first panic is
// kept; later ones bump the counter.
type faultSlot struct {
	mu    sync.Mutex
	fault *Fault
}

// record stores v and reports whether it was the first fault since the
// last take.
func (s *faultSlot) record(v any, stack []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault != nil {
		s.fault.Count++
		return false
	}
	s.fault = &Fault{Value: v, Stack: stack, Count: 1}
	return true
}

func (s *faultSlot) take() *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fault
	s.fault = nil
	return f
}
