package verify_test

import (
	"errors"
	"strings"
	"testing"

	"irlower/internal/ir"
	"irlower/internal/testkit"
	"irlower/internal/verify"
)

func TestCheckAcceptsSample(t *testing.T) {
	if err := verify.Check(testkit.Sample()); err != nil {
		t.Fatalf("sample must verify: %v", err)
	}
}

func TestCheckViolations(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *testkit.Builder)
		want  string
	}{
		{
			name: "call to removed function",
			build: func(b *testkit.Builder) {
				gone, _ := b.Func(b.U.Global, "gone", ir.AccessPrivate)
				_, p := b.Program("main")
				p.Body = []*ir.Stmt{b.CallStmt(gone)}
				b.U.Remove(b.U.Global, gone)
			},
			want: `call refers to dead symbol "gone"`,
		},
		{
			name: "owned scope with wrong parent",
			build: func(b *testkit.Builder) {
				_, m := b.Module("lib")
				_, p := b.Program("main")
				b.U.Scope(m.Scope).Parent = p.Scope
			},
			want: "owned scope parent is",
		},
		{
			name: "duplicate scope counter",
			build: func(b *testkit.Builder) {
				_, m := b.Module("lib")
				_, p := b.Program("main")
				b.U.Scope(p.Scope).Counter = b.U.Scope(m.Scope).Counter
			},
			want: "also used by scope",
		},
		{
			name: "logical assigned to integer",
			build: func(b *testkit.Builder) {
				_, p := b.Program("main")
				i := b.Local(p.Scope, "i", b.I4)
				p.Body = []*ir.Stmt{b.Set(b.Ref(i), b.Bool(true))}
			},
			want: "cannot assign logical",
		},
		{
			name: "integer if condition",
			build: func(b *testkit.Builder) {
				_, p := b.Program("main")
				p.Body = []*ir.Stmt{b.If(b.Int(1), []*ir.Stmt{b.Print(b.Int(2))}, nil)}
			},
			want: "if condition has type",
		},
		{
			name: "call expression to a subroutine",
			build: func(b *testkit.Builder) {
				sub, fn := b.Func(b.U.Global, "fill", ir.AccessPrivate)
				b.Param(fn, "n", b.I4, ir.IntentIn)
				_, p := b.Program("main")
				p.Body = []*ir.Stmt{b.Print(b.Call(sub, b.Int(1)))}
			},
			want: `call expression to "fill" which has no result`,
		},
		{
			name: "call typed unlike the result",
			build: func(b *testkit.Builder) {
				f, fn := b.Func(b.U.Global, "half", ir.AccessPrivate)
				b.Result(fn, "r", b.R8)
				_, p := b.Program("main")
				call := b.Call(f)
				call.Type = b.I4
				p.Body = []*ir.Stmt{b.Print(call)}
			},
			want: `call to "half" has type integer`,
		},
		{
			name: "dimension with one bound",
			build: func(b *testkit.Builder) {
				_, p := b.Program("main")
				typ := b.U.Types.Array(b.R8, []ir.Dim{{Start: b.Int(1)}})
				b.Local(p.Scope, "a", typ)
			},
			want: "dimension 1 has only one bound",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testkit.NewBuilder()
			tt.build(b)
			err := verify.Check(b.U)
			var verr *verify.Error
			if !errors.As(err, &verr) {
				t.Fatalf("want *verify.Error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestMustVerifyPanics(t *testing.T) {
	b := testkit.NewBuilder()
	_, p := b.Program("main")
	p.Body = []*ir.Stmt{b.If(b.Int(1), nil, nil)}
	defer func() {
		if recover() == nil {
			t.Fatal("MustVerify did not panic")
		}
	}()
	verify.MustVerify(b.U)
}
