// Package vm implements the stack-based virtual machine described by
// spec.md §4.5: a fetch/decode/dispatch loop over a Chunk's bytecode, an
// operand stack, and a global name→value environment.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"loxvm/internal/chunk"
	"loxvm/internal/value"
)

// StackMax bounds the operand stack. spec.md §3 leaves capacity
// unspecified ("unbounded in spec; implementations may cap at 256"); this
// VM caps higher since, unlike the teacher's VM, it never spends stack
// slots on call frames.
const StackMax = 4096

// RuntimeError is returned by Run when the VM hits an error defined by the
// language's semantics (spec.md §4.5) — as opposed to a fatal
// internal-consistency violation (corrupt bytecode), which this VM panics
// on instead (spec.md §4.5's closing paragraph).
type RuntimeError struct {
	Line    int
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d] in script\n", e.Message, e.Line)
}

// VM owns a chunk, an instruction pointer, an operand stack, and the
// global environment. Globals persist across successive Run calls on the
// same VM (spec.md §3: "REPL accumulates definitions").
type VM struct {
	stack    []value.Value
	globals  map[string]value.Value

	// SessionID is a random UUID assigned when the VM is created
	// (SPEC_FULL.md §3). The driver does not read it; its crash report
	// carries a separate crash ID generated at process start.
	SessionID string

	Stdout io.Writer
	Stderr io.Writer
}

// New returns a VM with empty globals, ready to Run successive chunks.
func New() *VM {
	return &VM{
		globals:   make(map[string]value.Value),
		SessionID: uuid.NewString(),
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

func (vm *VM) push(v value.Value) {
	if len(vm.stack) >= StackMax {
		panic("loxvm: stack overflow — fatal internal-consistency violation")
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	n := len(vm.stack)
	if n == 0 {
		panic("loxvm: pop from empty stack — fatal internal-consistency violation")
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

// Run executes c to completion: a successful RETURN returns nil. A
// language-level runtime error returns *RuntimeError, with the stack
// cleared and globals left as of the last successful write (spec.md §7).
func (vm *VM) Run(c *chunk.Chunk) error {
	vm.stack = vm.stack[:0]
	ip := 0

	runtimeError := func(format string, args ...interface{}) *RuntimeError {
		line := 0
		if ip > 0 && ip <= len(c.Lines) {
			line = c.Lines[ip-1]
		}
		vm.stack = vm.stack[:0]
		return &RuntimeError{Line: line, Message: fmt.Sprintf(format, args...)}
	}

	readShort := func() int {
		hi, lo := c.Code[ip], c.Code[ip+1]
		ip += 2
		return int(hi)<<8 | int(lo)
	}

	for {
		if ip >= len(c.Code) {
			return nil
		}

		op := chunk.OpCode(c.Code[ip])
		ip++

		if len(vm.stack) >= StackMax {
			return runtimeError("Stack overflow.")
		}

		switch op {
		case chunk.OpConstant:
			idx := c.Code[ip]
			ip++
			vm.push(c.ConstantAt(idx))

		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.NewBool(true))
		case chunk.OpFalse:
			vm.push(value.NewBool(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpDefineGlobal:
			idx := c.Code[ip]
			ip++
			name := c.ConstantAt(idx).String()
			vm.globals[name] = vm.pop()

		case chunk.OpGetGlobal:
			idx := c.Code[ip]
			ip++
			name := c.ConstantAt(idx).String()
			v, ok := vm.globals[name]
			if !ok {
				return runtimeError("Undefined variable '%s'.", name)
			}
			vm.push(v)

		case chunk.OpSetGlobal:
			idx := c.Code[ip]
			ip++
			name := c.ConstantAt(idx).String()
			if _, ok := vm.globals[name]; !ok {
				return runtimeError("Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)

		case chunk.OpGetLocal:
			slot := c.Code[ip]
			ip++
			vm.push(vm.stack[slot])

		case chunk.OpSetLocal:
			slot := c.Code[ip]
			ip++
			vm.stack[slot] = vm.peek(0)

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.NewBool(value.Equal(a, b)))

		case chunk.OpGreater:
			b, a, err := vm.popNumberPair(runtimeError)
			if err != nil {
				return err
			}
			vm.push(value.NewBool(a > b))

		case chunk.OpLess:
			b, a, err := vm.popNumberPair(runtimeError)
			if err != nil {
				return err
			}
			vm.push(value.NewBool(a < b))

		case chunk.OpAdd:
			b := vm.peek(0)
			a := vm.peek(1)
			switch {
			case a.IsNumber() && b.IsNumber():
				vm.pop()
				vm.pop()
				vm.push(value.NewNumber(a.Number + b.Number))
			case a.IsString() && b.IsString():
				vm.pop()
				vm.pop()
				vm.push(value.NewString(a.Str + b.Str))
			default:
				return runtimeError("Operands must be two numbers or two strings.")
			}

		case chunk.OpSubtract:
			b, a, err := vm.popNumberPair(runtimeError)
			if err != nil {
				return err
			}
			vm.push(value.NewNumber(a - b))

		case chunk.OpMultiply:
			b, a, err := vm.popNumberPair(runtimeError)
			if err != nil {
				return err
			}
			vm.push(value.NewNumber(a * b))

		case chunk.OpDivide:
			b, a, err := vm.popNumberPair(runtimeError)
			if err != nil {
				return err
			}
			vm.push(value.NewNumber(a / b))

		case chunk.OpNot:
			vm.push(value.NewBool(!value.Truthy(vm.pop())))

		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return runtimeError("Operand must be a number.")
			}
			n := vm.pop().Number
			vm.push(value.NewNumber(-n))

		case chunk.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())

		case chunk.OpJump:
			offset := readShort()
			ip += offset

		case chunk.OpJumpIfFalse:
			offset := readShort()
			if !value.Truthy(vm.peek(0)) {
				ip += offset
			}

		case chunk.OpLoop:
			offset := readShort()
			ip -= offset

		case chunk.OpReturn:
			return nil

		default:
			panic(fmt.Sprintf("loxvm: unknown opcode %d — fatal internal-consistency violation", op))
		}
	}
}

// popNumberPair pops b then a (b was pushed last) and requires both to be
// numbers, per spec.md §4.5's arithmetic helpers.
func (vm *VM) popNumberPair(errf func(string, ...interface{}) *RuntimeError) (b, a float64, err *RuntimeError) {
	bv := vm.pop()
	av := vm.pop()
	if !av.IsNumber() || !bv.IsNumber() {
		return 0, 0, errf("Operands must be numbers.")
	}
	return bv.Number, av.Number, nil
}
