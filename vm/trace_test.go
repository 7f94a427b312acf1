package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Tracer tests
// ---------------------------------------------------------------------------

func traceOf(t *testing.T, build func(b *Builder), steps int, builtins ...Builtin) string {
	t.Helper()
	m := newTestVM(t, build, builtins...)
	var out strings.Builder
	m.SetTracer(NewTracer(&out))
	for i := 0; i < steps; i++ {
		m.Step()
	}
	return out.String()
}

func TestTracePush(t *testing.T) {
	got := traceOf(t, func(b *Builder) { b.Psh(7) }, 1)
	if got != "PC:0 PSH 7 → {7}\n" {
		t.Errorf("trace = %q", got)
	}
}

func TestTraceLines(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		steps int
		want  []string // one substring per line, in order
	}{
		{
			"arithmetic",
			func(b *Builder) {
				b.Psh(3)
				b.Psh(4)
				b.Op(OpADD)
			},
			3,
			[]string{"PC:0 PSH 3 → {3}", "PC:1 PSH 4 → {4, 3}", "PC:2 ADD {7}"},
		},
		{
			"store and load",
			func(b *Builder) {
				b.SetMainVariables(1)
				b.Psh(9)
				b.Stv(0)
				b.Ldv(0)
			},
			3,
			[]string{"PSH 9", "STV [0] 9 ←", "LDV [0] 9 →"},
		},
		{
			"taken branch",
			func(b *Builder) {
				b.Psh(1)
				b.Psh(1)
				b.Op(OpBNZ)
				b.Op(OpSKZ)
				b.Op(OpSKZ)
			},
			3,
			[]string{"PSH 1", "PSH 1", "BNZ <5>"},
		},
		{
			"branch not taken",
			func(b *Builder) {
				b.Psh(0)
				b.Psh(1)
				b.Op(OpBNZ)
			},
			3,
			[]string{"PSH 0", "PSH 1", "BNZ x"},
		},
		{
			"sleep",
			func(b *Builder) {
				b.Psh(50)
				b.Op(OpSLP)
			},
			2,
			[]string{"PSH 50", "SLP 50 {}"},
		},
	}

	for _, tt := range tests {
		got := strings.Split(strings.TrimSuffix(traceOf(t, tt.build, tt.steps), "\n"), "\n")
		if len(got) != len(tt.want) {
			t.Errorf("%s: %d lines, want %d:\n%s", tt.name, len(got), len(tt.want), strings.Join(got, "\n"))
			continue
		}
		for i, want := range tt.want {
			if !strings.Contains(got[i], want) {
				t.Errorf("%s: line %d = %q, want substring %q", tt.name, i, got[i], want)
			}
		}
	}
}

func TestTraceCallReturn(t *testing.T) {
	got := traceOf(t, func(b *Builder) {
		b.AddFunction(Function{Address: 2, ArgumentsCount: 1, VariablesCount: 1, ReturnsCount: 1})
		b.Psh(9)
		b.Cal(0)
		b.Ldv(0)
		b.Op(OpRET)
	}, 4)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("%d lines:\n%s", len(lines), got)
	}
	if !strings.Contains(lines[1], "CAL <2> (2) =") {
		t.Errorf("CAL line = %q", lines[1])
	}
	if !strings.Contains(lines[3], "RET <2> (2+1)") {
		t.Errorf("RET line = %q", lines[3])
	}
}

func TestTraceBuiltinCall(t *testing.T) {
	noop := func(_ *VM, _ []Cell, _ int) {}
	got := traceOf(t, func(b *Builder) {
		b.AddFunction(Function{Address: 0, ArgumentsCount: 1, IsBuiltIn: true})
		b.Psh(7)
		b.Cal(0)
	}, 2, noop)
	if !strings.Contains(got, "CAL <*0> (1) =") {
		t.Errorf("trace = %q", got)
	}
}

func TestTraceFailure(t *testing.T) {
	got := traceOf(t, func(b *Builder) { b.Op(OpADD) }, 1)
	if !strings.Contains(got, "!Data stack underflow") {
		t.Errorf("trace = %q", got)
	}
}

func TestTraceGatedStepSilent(t *testing.T) {
	clock := &fakeClock{now: 100}
	m := newTestVM(t, func(b *Builder) {
		b.Psh(50)
		b.Op(OpSLP)
	})
	m.SetClock(clock.read)
	var out strings.Builder
	m.SetTracer(NewTracer(&out))
	m.Step()
	m.Step()
	before := out.Len()
	m.Step() // gated
	if out.Len() != before {
		t.Errorf("gated step emitted output: %q", out.String()[before:])
	}
}
