package scanner

import (
	"testing"

	"loxvm/internal/token"
)

type scanCase struct {
	input string
	kinds []token.Kind
}

func runScanTests(t *testing.T, tests []scanCase) {
	for _, tt := range tests {
		s := New(tt.input)
		for i, want := range tt.kinds {
			tok := s.Next()
			if tok.Kind != want {
				t.Fatalf("input %q: token %d: got %s, want %s", tt.input, i, tok.Kind, want)
			}
		}
	}
}

func TestPunctuationAndOperators(t *testing.T) {
	runScanTests(t, []scanCase{
		{"(){},.-+;*/", []token.Kind{
			token.LeftParen, token.RightParen, token.LeftBrace, token.RightBrace,
			token.Comma, token.Dot, token.Minus, token.Plus, token.Semicolon,
			token.Star, token.Slash, token.Eof,
		}},
		{"! != = == > >= < <=", []token.Kind{
			token.Bang, token.BangEqual, token.Equal, token.EqualEqual,
			token.Greater, token.GreaterEqual, token.Less, token.LessEqual, token.Eof,
		}},
	})
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	runScanTests(t, []scanCase{
		{"and class else false for fun if nil or print return super this true var while",
			[]token.Kind{
				token.And, token.Class, token.Else, token.False, token.For, token.Fun,
				token.If, token.Nil, token.Or, token.Print, token.Return, token.Super,
				token.This, token.True, token.Var, token.While, token.Eof,
			}},
		{"foo bar123 _baz", []token.Kind{token.Identifier, token.Identifier, token.Identifier, token.Eof}},
	})
}

func TestNumbersAndStrings(t *testing.T) {
	runScanTests(t, []scanCase{
		{"123 45.67", []token.Kind{token.Number, token.Number, token.Eof}},
		{`"hello world"`, []token.Kind{token.String, token.Eof}},
		{`"unterminated`, []token.Kind{token.Error}},
	})
}

func TestLineTrackingAcrossStringsAndComments(t *testing.T) {
	src := "var a = 1; // comment\nvar b = \"line\nbreak\";\nprint b;"
	s := New(src)
	var last token.Token
	for {
		tok := s.Next()
		if tok.Kind == token.Eof {
			break
		}
		last = tok
	}
	if last.Line != 4 {
		t.Fatalf("expected last token on line 4, got %d", last.Line)
	}
}

func TestUnexpectedCharacter(t *testing.T) {
	s := New("@")
	tok := s.Next()
	if tok.Kind != token.Error {
		t.Fatalf("expected Error token, got %s", tok.Kind)
	}
}
