package types

import (
	"errors"
	"fmt"
)

// SymbolKind is the kind of top-level Go declaration a code chunk holds
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
)

// Valid reports whether k is a known kind
func (k SymbolKind) Valid() bool {
	switch k {
	case KindFunction, KindMethod, KindStruct, KindInterface, KindType, KindConst, KindVar:
		return true
	}
	return false
}

// SymbolScope is exported or unexported
type SymbolScope string

const (
	ScopeExported   SymbolScope = "exported"
	ScopeUnexported SymbolScope = "unexported"
)

// Position is a 1-based source location
type Position struct {
	Line   int
	Column int
}

// Symbol is a declaration extracted from a Go file; each becomes one code chunk
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Package    string
	Signature  string // Declaration header without the body
	DocComment string
	Scope      SymbolScope
	Receiver   string // Receiver type name; methods only

	Start Position // Includes the doc comment
	End   Position
}

var (
	ErrSymbolName     = errors.New("symbol name is required")
	ErrSymbolPackage  = errors.New("symbol package is required")
	ErrSymbolReceiver = errors.New("receiver is set only on methods")
	ErrSymbolRange    = errors.New("invalid symbol line range")
)

// Validate checks that a parsed symbol can be chunked
func (s *Symbol) Validate() error {
	switch {
	case s.Name == "":
		return ErrSymbolName
	case !s.Kind.Valid():
		return fmt.Errorf("unknown symbol kind %q", s.Kind)
	case s.Scope != ScopeExported && s.Scope != ScopeUnexported:
		return fmt.Errorf("unknown symbol scope %q", s.Scope)
	case s.Package == "":
		return ErrSymbolPackage
	case (s.Kind == KindMethod) != (s.Receiver != ""):
		return ErrSymbolReceiver
	case s.Start.Line < 1 || s.End.Line < s.Start.Line:
		return ErrSymbolRange
	}
	return nil
}

// QualifiedName is Receiver.Name for methods and Name otherwise. Code
// results deduplicate on it together with the file path.
func (s *Symbol) QualifiedName() string {
	if s.Kind == KindMethod && s.Receiver != "" {
		return s.Receiver + "." + s.Name
	}
	return s.Name
}
