package types

import (
	"errors"
	"go/token"
)

// SymbolKind represents the type of Go language symbol
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
	KindField     SymbolKind = "field"
)

// SymbolScope represents the visibility scope of a symbol
type SymbolScope string

const (
	ScopeExported   SymbolScope = "exported"
	ScopeUnexported SymbolScope = "unexported"
)

// Position represents a location in source code
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Symbol is a declaration extracted from Go source via AST parsing
type Symbol struct {
	Name       string      `json:"name"`
	Kind       SymbolKind  `json:"kind"`
	Package    string      `json:"package"`
	Signature  string      `json:"signature,omitempty"`
	DocComment string      `json:"doc_comment,omitempty"`
	Scope      SymbolScope `json:"scope"`
	Receiver   string      `json:"receiver,omitempty"` // methods and fields: owning type
	Start      Position    `json:"start"`
	End        Position    `json:"end"`
}

// IsExported returns true if the symbol is visible outside its package
func (s *Symbol) IsExported() bool {
	return s.Scope == ScopeExported && token.IsExported(s.Name)
}

// Validate performs validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	switch s.Kind {
	case KindFunction, KindMethod, KindStruct, KindInterface, KindType, KindConst, KindVar, KindField:
	default:
		return errors.New("invalid symbol kind")
	}

	if s.Kind == KindMethod && s.Receiver == "" {
		return errors.New("methods must have a receiver type")
	}

	if s.Start.Line <= 0 || s.End.Line < s.Start.Line {
		return errors.New("invalid position")
	}

	return nil
}
