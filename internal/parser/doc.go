// Package parser extracts top-level declarations from Go source files.
//
// Each function, method, type, and const/var declaration becomes one
// types.Symbol with its line span (doc comment included), which the indexer
// turns into a code chunk:
//
//	p := parser.New()
//	f, err := p.ParseFile("internal/auth/login.go")
//	for _, sym := range f.Symbols {
//	    fmt.Println(sym.QualifiedName(), sym.Start.Line, sym.End.Line)
//	}
//
// Files with syntax errors still yield the symbols recovered from the partial
// AST; the error is reported in File.Err.
package parser
