// Package compiler implements the language's single-pass Pratt compiler
// (spec.md §4.4): it drives the scanner token-by-token and emits bytecode
// directly into a chunk.Chunk, with no intermediate syntax tree. A dense
// table of parse rules indexed by token.Kind — mirroring the teacher's
// function-pointer rule table — drives prefix/infix dispatch.
package compiler

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"loxvm/internal/chunk"
	"loxvm/internal/scanner"
	"loxvm/internal/token"
	"loxvm/internal/value"
)

// CompileError is the first diagnostic a failed compile produced. All
// diagnostics (there may be several, across synchronisation points) are
// written to the compiler's error writer as they're discovered; this
// value lets callers that need the line/message programmatically (tests,
// the driver's exit-code mapping) avoid re-parsing stderr text.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %d] %s", e.Line, e.Message)
}

// maxLocals bounds the compiler's local-variable stack (spec.md §3: "The
// compiler holds an ordered stack of at most 256 locals"), matching the
// single operand byte GET_LOCAL/SET_LOCAL use to address a slot.
const maxLocals = 256

type local struct {
	name  token.Token
	depth int // -1 means "declared, not yet initialized"
}

// precedence levels, lowest to highest (spec.md §4.4).
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// compiler is the single mutable state threaded through every rule
// handler (spec.md §4.4's "single mutable compiler" design note).
type compiler struct {
	scanner *scanner.Scanner
	chunk   *chunk.Chunk

	previous token.Token
	current  token.Token

	locals     []local
	scopeDepth int

	hadError  bool
	panicMode bool
	firstErr  *CompileError

	errOut io.Writer
}

// Compile compiles source into a Chunk. It returns the chunk and nil on
// success; on failure it returns the partially built chunk (which the
// caller must discard — "no bytecode from the failing compile runs",
// spec.md §7) and a *CompileError describing the first diagnostic.
func Compile(source string) (*chunk.Chunk, error) {
	return CompileTo(source, os.Stderr)
}

// CompileTo compiles source, writing diagnostics to errOut (tests pass a
// buffer instead of stderr).
func CompileTo(source string, errOut io.Writer) (*chunk.Chunk, error) {
	c := &compiler{
		scanner: scanner.New(source),
		chunk:   chunk.New(),
		errOut:  errOut,
	}

	c.advance()
	for !c.matchTok(token.Eof) {
		c.declaration()
	}
	c.emitOp(chunk.OpReturn)

	if c.hadError {
		return c.chunk, c.firstErr
	}
	return c.chunk, nil
}

// ---------------------------------------------------------------- tokens

func (c *compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.Next()
		if c.current.Kind != token.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *compiler) check(kind token.Kind) bool { return c.current.Kind == kind }

func (c *compiler) matchTok(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *compiler) consume(kind token.Kind, msg string) {
	if c.current.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// -------------------------------------------------------------- emitting

func (c *compiler) emitOp(op chunk.OpCode) {
	c.chunk.WriteOp(op, c.previous.Line)
}

func (c *compiler) emitByte(b byte) {
	c.chunk.WriteByte(b, c.previous.Line)
}

func (c *compiler) emitOpByte(op chunk.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *compiler) makeConstant(v value.Value) byte {
	idx, ok := c.chunk.AddConstant(v)
	if !ok {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return idx
}

func (c *compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

// emitJump writes op followed by a two-byte placeholder operand and
// returns the offset of the placeholder's first byte, for patchJump.
func (c *compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk.Code) - 2
}

// patchJump backfills the jump at offset with the distance from the
// instruction after its operand to the current code position (spec.md
// §4.3, §9: "current offset minus the patch site minus 2").
func (c *compiler) patchJump(offset int) {
	jump := len(c.chunk.Code) - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
		return
	}
	c.chunk.Code[offset] = byte(jump >> 8)
	c.chunk.Code[offset+1] = byte(jump)
}

func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := len(c.chunk.Code) - loopStart + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// -------------------------------------------------------------- scoping

func (c *compiler) beginScope() { c.scopeDepth++ }

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(chunk.OpPop)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *compiler) declareLocal(name token.Token) {
	if len(c.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name.Lexeme == name.Lexeme {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

func (c *compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// resolveLocal walks the local stack top-down by lexeme, returning the
// slot (index from the bottom) or -1 if name isn't a local.
func (c *compiler) resolveLocal(name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name.Lexeme == name.Lexeme {
			if c.locals[i].depth == -1 {
				c.error("Cannot read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------- declarations

func (c *compiler) declaration() {
	if c.matchTok(token.Var) {
		c.varDeclaration()
	} else {
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.matchTok(token.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

// parseVariable consumes the identifier starting a declaration and, for a
// local, pushes it onto the locals stack; it returns the constant-pool
// index to use with DEFINE_GLOBAL (meaningless for locals).
func (c *compiler) parseVariable(msg string) byte {
	c.consume(token.Identifier, msg)
	name := c.previous

	if c.scopeDepth > 0 {
		c.declareLocal(name)
		return 0
	}
	return c.makeConstant(value.NewString(name.Lexeme))
}

func (c *compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(chunk.OpDefineGlobal, global)
}

// synchronize advances until a statement boundary: just past a ';', or at
// a token that starts a new statement (spec.md §4.4).
func (c *compiler) synchronize() {
	c.panicMode = false

	for c.current.Kind != token.Eof {
		if c.previous.Kind == token.Semicolon {
			return
		}
		switch c.current.Kind {
		case token.Class, token.Fun, token.Var, token.For, token.If,
			token.While, token.Print, token.Return:
			return
		}
		c.advance()
	}
}

// -------------------------------------------------------------- statements

func (c *compiler) statement() {
	switch {
	case c.matchTok(token.Print):
		c.printStatement()
	case c.matchTok(token.If):
		c.ifStatement()
	case c.matchTok(token.While):
		c.whileStatement()
	case c.matchTok(token.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *compiler) ifStatement() {
	c.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.matchTok(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	loopStart := len(c.chunk.Code)
	c.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *compiler) block() {
	for !c.check(token.RightBrace) && !c.check(token.Eof) {
		c.declaration()
	}
	c.consume(token.RightBrace, "Expect '}' after block.")
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

// ------------------------------------------------------------- expressions

func (c *compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := getRule(c.previous.Kind)
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= getRule(c.current.Kind).precedence {
		c.advance()
		infix := getRule(c.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.matchTok(token.Equal) {
		c.error("Invalid assignment target.")
	}
}

func grouping(c *compiler, _ bool) {
	c.expression()
	c.consume(token.RightParen, "Expect ')' after expression.")
}

func unary(c *compiler, _ bool) {
	opKind := c.previous.Kind
	c.parsePrecedence(precUnary)
	switch opKind {
	case token.Minus:
		c.emitOp(chunk.OpNegate)
	case token.Bang:
		c.emitOp(chunk.OpNot)
	}
}

func binary(c *compiler, _ bool) {
	opKind := c.previous.Kind
	rule := getRule(opKind)
	c.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case token.Plus:
		c.emitOp(chunk.OpAdd)
	case token.Minus:
		c.emitOp(chunk.OpSubtract)
	case token.Star:
		c.emitOp(chunk.OpMultiply)
	case token.Slash:
		c.emitOp(chunk.OpDivide)
	case token.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case token.BangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case token.Greater:
		c.emitOp(chunk.OpGreater)
	case token.GreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case token.Less:
		c.emitOp(chunk.OpLess)
	case token.LessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	}
}

func and_(c *compiler, _ bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func or_(c *compiler, _ bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func number(c *compiler, _ bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.NewNumber(n))
}

func stringLit(c *compiler, _ bool) {
	lex := c.previous.Lexeme
	c.emitConstant(value.NewString(lex[1 : len(lex)-1]))
}

func literal(c *compiler, _ bool) {
	switch c.previous.Kind {
	case token.False:
		c.emitOp(chunk.OpFalse)
	case token.True:
		c.emitOp(chunk.OpTrue)
	case token.Nil:
		c.emitOp(chunk.OpNil)
	}
}

func variable(c *compiler, canAssign bool) {
	namedVariable(c, c.previous, canAssign)
}

func namedVariable(c *compiler, name token.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	slot := c.resolveLocal(name)
	var arg byte
	if slot != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
		arg = byte(slot)
	} else {
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		arg = c.makeConstant(value.NewString(name.Lexeme))
	}

	if canAssign && c.matchTok(token.Equal) {
		c.expression()
		c.emitOpByte(setOp, arg)
	} else {
		c.emitOpByte(getOp, arg)
	}
}

// ------------------------------------------------------------------ rules

// rules is a dense array indexed by token.Kind (spec.md §9: "a dense
// table indexed by token kind ... the rule lookup is then O(1) and
// branch-predictable"), mirroring opNames (chunk.go) and names
// (token.go)'s array-indexed style. Kinds with no entry default to the
// zero parseRule, i.e. precNone with no prefix/infix handler. The table is
// filled in init because its handlers refer back to it through getRule.
var rules [token.Eof + 1]parseRule

func init() {
	rules = [token.Eof + 1]parseRule{
		token.LeftParen:    {prefix: grouping, precedence: precNone},
		token.Minus:        {prefix: unary, infix: binary, precedence: precTerm},
		token.Plus:         {infix: binary, precedence: precTerm},
		token.Slash:        {infix: binary, precedence: precFactor},
		token.Star:         {infix: binary, precedence: precFactor},
		token.Bang:         {prefix: unary, precedence: precNone},
		token.BangEqual:    {infix: binary, precedence: precEquality},
		token.EqualEqual:   {infix: binary, precedence: precEquality},
		token.Greater:      {infix: binary, precedence: precComparison},
		token.GreaterEqual: {infix: binary, precedence: precComparison},
		token.Less:         {infix: binary, precedence: precComparison},
		token.LessEqual:    {infix: binary, precedence: precComparison},
		token.Identifier:   {prefix: variable, precedence: precNone},
		token.String:       {prefix: stringLit, precedence: precNone},
		token.Number:       {prefix: number, precedence: precNone},
		token.False:        {prefix: literal, precedence: precNone},
		token.True:         {prefix: literal, precedence: precNone},
		token.Nil:          {prefix: literal, precedence: precNone},
		token.And:          {infix: and_, precedence: precAnd},
		token.Or:           {infix: or_, precedence: precOr},
	}
}

func getRule(kind token.Kind) parseRule {
	if int(kind) >= 0 && int(kind) < len(rules) {
		return rules[kind]
	}
	return parseRule{precedence: precNone}
}

// -------------------------------------------------------------- diagnostics

func (c *compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *compiler) error(msg string)          { c.errorAt(c.previous, msg) }

// errorAt implements spec.md §4.4's panic-mode suppression: the first
// error in a run enters panic mode and is reported; subsequent errors
// before the next synchronize() still set hadError but print nothing.
// The "<where>" clause matches spec.md §6: "end" at EOF, the quoted
// lexeme otherwise.
func (c *compiler) errorAt(tok token.Token, msg string) {
	c.hadError = true
	if c.firstErr == nil {
		c.firstErr = &CompileError{Line: tok.Line, Message: msg}
	}
	if c.panicMode {
		return
	}
	c.panicMode = true

	where := "'" + tok.Lexeme + "'"
	if tok.Kind == token.Eof {
		where = "end"
	}
	fmt.Fprintf(c.errOut, "[line %d] Error at %s: %s\n", tok.Line, where, msg)
}
