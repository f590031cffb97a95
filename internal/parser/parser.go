package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strconv"
	"strings"

	"github.com/dshills/codeintel/pkg/types"
)

// File is the parse result of one Go source file
type File struct {
	Path    string
	Package string
	Imports []string
	Symbols []types.Symbol
	Lines   []string

	// Err is set when the file had syntax errors. Symbols recovered from the
	// partial AST are still returned.
	Err error
}

// Parser extracts top-level declarations from Go source files
type Parser struct {
	fset *token.FileSet
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{fset: token.NewFileSet()}
}

// ParseFile reads and parses the file at path
func (p *Parser) ParseFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseSource(path, src), nil
}

// ParseSource parses src as the contents of path
func (p *Parser) ParseSource(path string, src []byte) *File {
	out := &File{
		Path:  path,
		Lines: strings.Split(string(src), "\n"),
	}

	f, err := parser.ParseFile(p.fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		out.Err = fmt.Errorf("syntax error: %w", err)
	}
	if f == nil {
		return out
	}
	if f.Name != nil {
		out.Package = f.Name.Name
	}
	for _, imp := range f.Imports {
		if ip, err := strconv.Unquote(imp.Path.Value); err == nil {
			out.Imports = append(out.Imports, ip)
		}
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			out.Symbols = append(out.Symbols, p.funcSymbol(out.Package, src, d))
		case *ast.GenDecl:
			out.Symbols = append(out.Symbols, p.genSymbols(out.Package, d)...)
		}
	}
	return out
}

func (p *Parser) funcSymbol(pkg string, src []byte, d *ast.FuncDecl) types.Symbol {
	sym := types.Symbol{
		Name:       d.Name.Name,
		Kind:       types.KindFunction,
		Package:    pkg,
		DocComment: docText(d.Doc),
		Scope:      scopeOf(d.Name.Name),
		Start:      p.position(declStart(d.Doc, d.Pos())),
		End:        p.position(d.End()),
	}
	if d.Recv != nil && len(d.Recv.List) > 0 {
		sym.Kind = types.KindMethod
		sym.Receiver = receiverName(d.Recv.List[0].Type)
	}

	// Signature is the source text up to the opening brace
	end := d.End()
	if d.Body != nil {
		end = d.Body.Lbrace
	}
	from, to := p.fset.Position(d.Pos()).Offset, p.fset.Position(end).Offset
	if from >= 0 && to <= len(src) && from < to {
		sym.Signature = strings.TrimSpace(string(src[from:to]))
	}
	return sym
}

func (p *Parser) genSymbols(pkg string, d *ast.GenDecl) []types.Symbol {
	if d.Tok == token.CONST || d.Tok == token.VAR {
		return p.valueSymbols(pkg, d)
	}

	var syms []types.Symbol
	for _, spec := range d.Specs {
		s, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		doc := s.Doc
		if doc == nil && len(d.Specs) == 1 {
			doc = d.Doc
		}
		sym := types.Symbol{
			Name:       s.Name.Name,
			Kind:       types.KindType,
			Package:    pkg,
			DocComment: docText(doc),
			Scope:      scopeOf(s.Name.Name),
			Start:      p.position(declStart(doc, s.Pos())),
			End:        p.position(s.End()),
		}
		switch s.Type.(type) {
		case *ast.StructType:
			sym.Kind = types.KindStruct
		case *ast.InterfaceType:
			sym.Kind = types.KindInterface
		}
		sym.Signature = fmt.Sprintf("type %s %s", s.Name.Name, sym.Kind)
		syms = append(syms, sym)
	}
	return syms
}

// valueSymbols turns a const or var declaration into one symbol. A grouped
// declaration is named after its first identifier and spans the whole group.
func (p *Parser) valueSymbols(pkg string, d *ast.GenDecl) []types.Symbol {
	if len(d.Specs) == 0 {
		return nil
	}
	first, ok := d.Specs[0].(*ast.ValueSpec)
	if !ok || len(first.Names) == 0 {
		return nil
	}
	kind := types.KindVar
	if d.Tok == token.CONST {
		kind = types.KindConst
	}
	name := first.Names[0].Name
	signature := fmt.Sprintf("%s %s", d.Tok, name)
	if d.Lparen.IsValid() {
		signature = fmt.Sprintf("%s (...) // %d specs", d.Tok, len(d.Specs))
	}
	return []types.Symbol{{
		Name:       name,
		Kind:       kind,
		Package:    pkg,
		DocComment: docText(d.Doc),
		Scope:      scopeOf(name),
		Start:      p.position(declStart(d.Doc, d.Pos())),
		End:        p.position(d.End()),
		Signature:  signature,
	}}
}

func (p *Parser) position(pos token.Pos) types.Position {
	position := p.fset.Position(pos)
	return types.Position{Line: position.Line, Column: position.Column}
}

// declStart includes the doc comment in the symbol span
func declStart(doc *ast.CommentGroup, pos token.Pos) token.Pos {
	if doc != nil && doc.Pos().IsValid() {
		return doc.Pos()
	}
	return pos
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

func scopeOf(name string) types.SymbolScope {
	if token.IsExported(name) {
		return types.ScopeExported
	}
	return types.ScopeUnexported
}
