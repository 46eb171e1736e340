package vm

import (
	"errors"
	"io"
	"math"
	"testing"
)

func TestMemoryStoreLoadRoundtrip(t *testing.T) {
	m := NewMemory(0)
	r, err := m.Alloc(32)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}

	values := []int64{0, 1, -1, -9223372036854775808}
	for i, v := range values {
		if err := m.Store8(r.Base+int64(i)*8, v); err != nil {
			t.Fatalf("store at word %d failed: %v", i, err)
		}
	}
	for i, v := range values {
		got, err := m.Load8(r.Base + int64(i)*8)
		if err != nil {
			t.Fatalf("load at word %d failed: %v", i, err)
		}
		if got != v {
			t.Errorf("word %d = %d, want %d", i, got, v)
		}
	}
}

func TestMemoryBoundsChecks(t *testing.T) {
	m := NewMemory(0)
	r, err := m.Alloc(16)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}

	tests := []struct {
		addr int64
		ok   bool
		desc string
	}{
		{r.Base, true, "first word"},
		{r.Base + 8, true, "last word"},
		{r.Base + 1, true, "unaligned but inside"},
		{r.Base + 9, false, "straddles the end"},
		{r.Base + 16, false, "one past the end"},
		{r.Base - 8, false, "below the region"},
		{0, false, "null"},
		{-1, false, "negative"},
		{math.MaxInt64, false, "max address"},
		{math.MaxInt64 - 7, false, "just below max"},
		{math.MinInt64, false, "min address"},
	}

	for _, test := range tests {
		_, err := m.Load8(test.addr)
		if test.ok && err != nil {
			t.Errorf("%s: load failed: %v", test.desc, err)
		}
		if !test.ok && !errors.Is(err, ErrBadAddress) {
			t.Errorf("%s: err = %v, want ErrBadAddress", test.desc, err)
		}
	}
}

func TestMemoryDanglingAddressFaults(t *testing.T) {
	m := NewMemory(0)
	r, err := m.Alloc(8)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if err := m.Store8(r.Base, 7); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	m.Release(r)

	if _, err := m.Load8(r.Base); !errors.Is(err, ErrBadAddress) {
		t.Errorf("load after release: err = %v, want ErrBadAddress", err)
	}
	if err := m.Store8(r.Base, 1); !errors.Is(err, ErrBadAddress) {
		t.Errorf("store after release: err = %v, want ErrBadAddress", err)
	}

	// Bases are never reused, so the stale address stays dangling even
	// after further allocations.
	if _, err := m.Alloc(8); err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if _, err := m.Load8(r.Base); !errors.Is(err, ErrBadAddress) {
		t.Errorf("stale address after realloc: err = %v, want ErrBadAddress", err)
	}
}

func TestMemoryBudget(t *testing.T) {
	m := NewMemory(64)

	a, err := m.Alloc(48)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if _, err := m.Alloc(32); !errors.Is(err, ErrMemoryExhausted) {
		t.Fatalf("over-budget alloc: err = %v, want ErrMemoryExhausted", err)
	}

	// Releasing refunds the budget.
	m.Release(a)
	if _, err := m.Alloc(32); err != nil {
		t.Errorf("alloc after release failed: %v", err)
	}
}

func TestMemoryNegativeSize(t *testing.T) {
	m := NewMemory(0)
	if _, err := m.Alloc(-1); !errors.Is(err, ErrBadAddress) {
		t.Errorf("err = %v, want ErrBadAddress", err)
	}
}

func TestMemoryZeroSizeRegionRejectsAccess(t *testing.T) {
	m := NewMemory(0)
	r, err := m.Alloc(0)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if _, err := m.Load8(r.Base); !errors.Is(err, ErrBadAddress) {
		t.Errorf("err = %v, want ErrBadAddress", err)
	}
}

// TestAllocaLoadStoreProgram exercises the memory instructions end to
// end: allocate, store through a register-held address, load it back.
func TestAllocaLoadStoreProgram(t *testing.T) {
	f := NewFunction("main")
	f.Block(0).Append(
		ins(OpAlloca, 1, 8),
		ins(OpImm, 2, 1234),
		ins(OpStore, 2, 1),
		ins(OpLoad, 3, 1),
		ins(OpDebug, 3),
		ins(OpRet),
	)

	out, err := runProgram(singleFunc(f))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "1234\n" {
		t.Errorf("output = %q, want %q", out, "1234\n")
	}
}

// TestAllocationsReleasedOnReturn: every allocation a callee makes is
// gone once it returns, while the caller's survive until the run ends.
func TestAllocationsReleasedOnReturn(t *testing.T) {
	p := &Program{}

	callee := NewFunction("callee")
	callee.Block(0).Append(
		ins(OpAlloca, 1, 64),
		ins(OpAlloca, 2, 64),
		ins(OpRet),
	)
	calleeRef := p.AddFunction(callee)

	main := NewFunction("main")
	main.Block(0).Append(
		ins(OpAlloca, 1, 16),
		ins(OpCall, int64(calleeRef)),
		ins(OpDebug, 1), // address is still bound after the call
		ins(OpRet),
	)
	entry := p.AddFunction(main)

	e := NewEngine(p, WithWriter(io.Discard))
	if err := e.Start(entry); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Record the live-allocation count after every instruction.
	var live []int
	for {
		halted, err := e.Step()
		if err != nil {
			t.Fatalf("step failed: %v", err)
		}
		live = append(live, e.Memory().Live())
		if halted {
			break
		}
	}

	// main alloca, call, callee allocas, callee ret (releases both),
	// debug, main ret (releases the last one).
	want := []int{1, 1, 2, 3, 1, 1, 0}
	if len(live) != len(want) {
		t.Fatalf("live counts = %v, want %v", live, want)
	}
	for i := range want {
		if live[i] != want[i] {
			t.Fatalf("live counts = %v, want %v", live, want)
		}
	}
}

func TestAllocationExhaustionFaultsRun(t *testing.T) {
	f := NewFunction("main")
	f.Block(0).Append(
		ins(OpAlloca, 1, 1024),
		ins(OpRet),
	)

	p, entry := singleFunc(f)
	_, err := runProgram(p, entry, WithMemoryLimit(512))
	if !errors.Is(err, ErrMemoryExhausted) {
		t.Fatalf("err = %v, want ErrMemoryExhausted", err)
	}

	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("err = %T, want *Fault", err)
	}
	if fault.Kind != FaultExhaustion {
		t.Errorf("fault kind = %v, want exhaustion", fault.Kind)
	}
}

// TestLoadOfNonAddressFaults: an arbitrary integer treated as an
// address must fault instead of reading process memory. Values near
// the top of the int64 range must not wrap past the range check.
func TestLoadOfNonAddressFaults(t *testing.T) {
	for _, addr := range []int64{12345, math.MaxInt64, math.MaxInt64 - 7, math.MinInt64} {
		f := NewFunction("main")
		f.Block(0).Append(
			ins(OpImm, 1, addr),
			ins(OpAlloca, 2, 16), // a live region must not be mistaken for addr
			ins(OpLoad, 3, 1),
			ins(OpRet),
		)

		_, err := runProgram(singleFunc(f))
		if !errors.Is(err, ErrBadAddress) {
			t.Fatalf("addr %#x: err = %v, want ErrBadAddress", addr, err)
		}

		var fault *Fault
		if !errors.As(err, &fault) {
			t.Fatalf("addr %#x: err = %T, want *Fault", addr, err)
		}
		if fault.Kind != FaultMemory {
			t.Errorf("addr %#x: fault kind = %v, want memory", addr, fault.Kind)
		}
	}
}
