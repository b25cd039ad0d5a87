// Package token defines the lexical token kinds produced by the scanner
// and consumed by the compiler's Pratt rule table.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	// Single-character punctuation.
	LeftParen Kind = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Slash
	Star

	// One or two character operators.
	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	// Literals.
	Identifier
	String
	Number

	// Keywords.
	And
	Class
	Else
	False
	For
	Fun
	If
	Nil
	Or
	Print
	Return
	Super
	This
	True
	Var
	While

	// Sentinels.
	Error
	Eof
)

var names = [...]string{
	LeftParen: "LeftParen", RightParen: "RightParen",
	LeftBrace: "LeftBrace", RightBrace: "RightBrace",
	Comma: "Comma", Dot: "Dot", Minus: "Minus", Plus: "Plus",
	Semicolon: "Semicolon", Slash: "Slash", Star: "Star",
	Bang: "Bang", BangEqual: "BangEqual",
	Equal: "Equal", EqualEqual: "EqualEqual",
	Greater: "Greater", GreaterEqual: "GreaterEqual",
	Less: "Less", LessEqual: "LessEqual",
	Identifier: "Identifier", String: "String", Number: "Number",
	And: "And", Class: "Class", Else: "Else", False: "False",
	For: "For", Fun: "Fun", If: "If", Nil: "Nil", Or: "Or",
	Print: "Print", Return: "Return", Super: "Super", This: "This",
	True: "True", Var: "Var", While: "While",
	Error: "Error", Eof: "Eof",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(names) && names[k] != "" {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// display holds a human-readable form of each kind. The compiler's
// diagnostics do not use it: their "Error at <where>" clause quotes the
// token's lexeme. Falls back to the kind's Go name when a kind has no
// special-cased rendering.
var display = map[Kind]string{
	LeftParen: "'('", RightParen: "')'",
	LeftBrace: "'{'", RightBrace: "'}'",
	Comma: "','", Dot: "'.'", Minus: "'-'", Plus: "'+'",
	Semicolon: "';'", Slash: "'/'", Star: "'*'",
	Bang: "'!'", BangEqual: "'!='",
	Equal: "'='", EqualEqual: "'=='",
	Greater: "'>'", GreaterEqual: "'>='",
	Less: "'<'", LessEqual: "'<='",
	Identifier: "identifier", String: "string", Number: "number",
	And: "'and'", Class: "'class'", Else: "'else'", False: "'false'",
	For: "'for'", Fun: "'fun'", If: "'if'", Nil: "'nil'", Or: "'or'",
	Print: "'print'", Return: "'return'", Super: "'super'", This: "'this'",
	True: "'true'", Var: "'var'", While: "'while'",
	Eof: "end",
}

// Display renders the kind in human-readable form ("'+'", "end", ...).
func (k Kind) Display() string {
	if s, ok := display[k]; ok {
		return s
	}
	return k.String()
}

// Keywords maps reserved identifier text to its keyword Kind. Declared
// here (rather than scanned character-by-character as a trie) for
// readability; lookup cost is the same small hash-map hit either way at
// this language's scale.
var Keywords = map[string]Kind{
	"and":    And,
	"class":  Class,
	"else":   Else,
	"false":  False,
	"for":    For,
	"fun":    Fun,
	"if":     If,
	"nil":    Nil,
	"or":     Or,
	"print":  Print,
	"return": Return,
	"super":  Super,
	"this":   This,
	"true":   True,
	"var":    Var,
	"while":  While,
}

// Lookup returns the keyword Kind for ident, or Identifier if ident is not
// a reserved word.
func Lookup(ident string) Kind {
	if k, ok := Keywords[ident]; ok {
		return k
	}
	return Identifier
}

// Token is a single lexical unit: a kind, a borrowed slice of the source
// text, and the 1-based line the scanner was on when the token ended (for
// a string spanning several lines, its last line). Tokens do not outlive the
// compile call that produced them (spec.md §3).
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) @%d", t.Kind, t.Lexeme, t.Line)
}
