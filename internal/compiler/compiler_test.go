package compiler

import (
	"bytes"
	"strings"
	"testing"

	"loxvm/internal/chunk"
)

func mustCompile(t *testing.T, src string) *chunk.Chunk {
	t.Helper()
	c, err := CompileTo(src, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("compiling %q: %v", src, err)
	}
	return c
}

func TestCompilerSmoke(t *testing.T) {
	for _, src := range []string{
		"1 + 2;",
		`print "foo" + "bar";`,
		"var x = 3; { var x = x + 1; print x; } print x;",
		"var i = 0; while (i < 3) { print i; i = i + 1; }",
		`if (true and false) print "a"; else print "b";`,
	} {
		c := mustCompile(t, src)
		if len(c.Code) != len(c.Lines) {
			t.Fatalf("%q: len(Code)=%d != len(Lines)=%d", src, len(c.Code), len(c.Lines))
		}
	}
}

func TestConstantOperandsAreValidIndices(t *testing.T) {
	c := mustCompile(t, `var a = "x"; var b = "y"; print a + b;`)
	for i := 0; i < len(c.Code); i++ {
		switch chunk.OpCode(c.Code[i]) {
		case chunk.OpConstant, chunk.OpDefineGlobal, chunk.OpGetGlobal, chunk.OpSetGlobal:
			i++
			idx := int(c.Code[i])
			if idx < 0 || idx >= len(c.Constants) {
				t.Fatalf("operand byte %d is out of range (have %d constants)", idx, len(c.Constants))
			}
		}
	}
}

func TestJumpTargetsAreInBounds(t *testing.T) {
	c := mustCompile(t, `var i = 0; while (i < 3) { i = i + 1; }`)
	for i := 0; i < len(c.Code); i++ {
		op := chunk.OpCode(c.Code[i])
		switch op {
		case chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop:
			offset := int(c.Code[i+1])<<8 | int(c.Code[i+2])
			sign := 1
			if op == chunk.OpLoop {
				sign = -1
			}
			target := i + 3 + sign*offset
			if target < 0 || target > len(c.Code) {
				t.Fatalf("jump target %d out of bounds (len %d)", target, len(c.Code))
			}
			i += 2
		}
	}
}

func TestShadowingLocalFromOuter(t *testing.T) {
	// x in the inner scope is initialized from the outer x; must compile.
	mustCompile(t, "var x = 3; { var x = x + 1; print x; } print x;")
}

func TestSelfReferentialLocalInitializerFails(t *testing.T) {
	var buf bytes.Buffer
	_, err := CompileTo("{ var a = a; }", &buf)
	if err == nil {
		t.Fatal("expected compile error for self-referential local initializer")
	}
	if !strings.Contains(buf.String(), "Cannot read local variable in its own initializer.") {
		t.Fatalf("unexpected diagnostic: %s", buf.String())
	}
}

func TestBlockScopedLocalFallsThroughToGlobalLookup(t *testing.T) {
	// x is popped from the locals stack at the end of the block, so the
	// reference in the enclosing scope resolves (at compile time) to a
	// global lookup rather than a local slot; whether "x" actually exists
	// as a global is a question this compiles fine and defers to the VM
	// (spec.md §4.3: GET_GLOBAL on an undefined name is a runtime error).
	c := mustCompile(t, "{ var x = 1; } print x;")
	if len(c.Code) == 0 {
		t.Fatal("expected non-empty chunk")
	}
}

func TestInvalidAssignmentTarget(t *testing.T) {
	var buf bytes.Buffer
	_, err := CompileTo("var a = 1; var b = 2; a + b = 3;", &buf)
	if err == nil {
		t.Fatal("expected compile error for invalid assignment target")
	}
	if !strings.Contains(buf.String(), "Invalid assignment target.") {
		t.Fatalf("unexpected diagnostic: %s", buf.String())
	}
}

func TestTooManyConstants(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString(`"s"; `)
	}
	var buf bytes.Buffer
	_, err := CompileTo(b.String(), &buf)
	if err == nil {
		t.Fatal("expected compile error for constant pool overflow")
	}
	if !strings.Contains(buf.String(), "Too many constants in one chunk.") {
		t.Fatalf("unexpected diagnostic: %s", buf.String())
	}
}

func TestSynchronizationAfterError(t *testing.T) {
	// The first statement is malformed; the parser should recover at the
	// next ';' and still compile the well-formed print after it, emitting
	// only one diagnostic (panic-mode suppression).
	var buf bytes.Buffer
	_, err := CompileTo(`var = 1; print "ok";`, &buf)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if strings.Count(buf.String(), "[line") != 1 {
		t.Fatalf("expected exactly one reported diagnostic, got:\n%s", buf.String())
	}
}
