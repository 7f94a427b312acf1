package vm

import "testing"

// ---------------------------------------------------------------------------
// Snapshot tests
// ---------------------------------------------------------------------------

func TestSnapshotRoundTrip(t *testing.T) {
	build := func(b *Builder) {
		b.SetMainVariables(1)
		b.AddFunction(Function{Address: 4, ArgumentsCount: 1, VariablesCount: 1, ReturnsCount: 1})
		b.Psh(3)
		b.Psh(50)
		b.Op(OpSLP)
		b.Cal(0)
		b.Ldv(0)
		b.Op(OpRET)
	}
	clock := &fakeClock{now: 700}
	m := newTestVM(t, build)
	m.SetClock(clock.read)
	m.SetBinding(7)

	// stop mid-program, inside a call entered after a sleep expired
	stepOK(t, m) // PSH 3
	stepOK(t, m) // PSH 50
	stepOK(t, m) // SLP
	clock.now = 800
	stepOK(t, m) // CAL

	data, err := m.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	restored := newTestVM(t, build)
	restored.SetClock(clock.read)
	if err := restored.Restore(data); err != nil {
		t.Fatal(err)
	}

	if restored.pc != m.pc || restored.dataTop != m.dataTop || restored.callTop != m.callTop {
		t.Fatalf("restored pc=%d dataTop=%d callTop=%d, want pc=%d dataTop=%d callTop=%d",
			restored.pc, restored.dataTop, restored.callTop, m.pc, m.dataTop, m.callTop)
	}
	if restored.dataStack != m.dataStack || restored.callStack != m.callStack {
		t.Fatal("restored stacks differ")
	}
	if restored.Binding() != 7 {
		t.Errorf("binding = %d, want 7", restored.Binding())
	}

	// the restored machine continues exactly where the original does
	stepOK(t, m)
	stepOK(t, restored)
	if restored.pc != m.pc || top(t, restored) != top(t, m) {
		t.Error("restored machine diverged")
	}
}

func TestRestoreRejects(t *testing.T) {
	m := newTestVM(t, func(b *Builder) { b.Psh(1) })

	corrupt := func(mutate func(*Snapshot)) []byte {
		s := Snapshot{}
		mutate(&s)
		data, err := cborEncMode.Marshal(&s)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"deep data stack", func(s *Snapshot) { s.DataStack = make([]Cell, DataStackSize+1) }},
		{"deep call stack", func(s *Snapshot) { s.CallStack = make([]Frame, CallStackSize+1) }},
		{"pc beyond code", func(s *Snapshot) { s.PC = 100 }},
	}
	for _, tt := range tests {
		if err := m.Restore(corrupt(tt.mutate)); err == nil {
			t.Errorf("%s: Restore accepted", tt.name)
		}
	}

	if err := m.Restore([]byte{0xFF, 0x00}); err == nil {
		t.Error("Restore accepted garbage bytes")
	}
}
