package parser

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// symbolExtractor collects symbols from top-level declarations
type symbolExtractor struct {
	fset        *token.FileSet
	packageName string
	symbols     []types.Symbol
}

func (e *symbolExtractor) newSymbol(name string, kind types.SymbolKind, node ast.Node, doc *ast.CommentGroup) types.Symbol {
	return types.Symbol{
		Name:       name,
		Kind:       kind,
		Package:    e.packageName,
		DocComment: docText(doc),
		Scope:      scopeOf(name),
		Start:      e.position(node.Pos()),
		End:        e.position(node.End()),
	}
}

func (e *symbolExtractor) extractFunction(fn *ast.FuncDecl) {
	kind := types.KindFunction
	receiver := ""
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		kind = types.KindMethod
		receiver = receiverName(fn.Recv.List[0].Type)
	}

	sym := e.newSymbol(fn.Name.Name, kind, fn, fn.Doc)
	sym.Receiver = receiver
	sym.Signature = funcSignature(fn)
	e.symbols = append(e.symbols, sym)
}

func (e *symbolExtractor) extractGenDecl(decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			doc := s.Doc
			if doc == nil {
				doc = decl.Doc
			}
			e.extractTypeSpec(s, doc)
		case *ast.ValueSpec:
			doc := s.Doc
			if doc == nil {
				doc = decl.Doc
			}
			e.extractValueSpec(s, doc, decl.Tok)
		}
	}
}

func (e *symbolExtractor) extractTypeSpec(spec *ast.TypeSpec, doc *ast.CommentGroup) {
	name := spec.Name.Name
	var sym types.Symbol

	switch t := spec.Type.(type) {
	case *ast.StructType:
		sym = e.newSymbol(name, types.KindStruct, spec, doc)
		sym.Signature = fmt.Sprintf("type %s%s struct { ... } // %d fields", name, typeParams(spec.TypeParams), t.Fields.NumFields())
	case *ast.InterfaceType:
		sym = e.newSymbol(name, types.KindInterface, spec, doc)
		sym.Signature = fmt.Sprintf("type %s%s interface { ... } // %d methods", name, typeParams(spec.TypeParams), t.Methods.NumFields())
	default:
		sym = e.newSymbol(name, types.KindType, spec, doc)
		op := " "
		if spec.Assign.IsValid() {
			op = " = "
		}
		sym.Signature = fmt.Sprintf("type %s%s%s%s", name, typeParams(spec.TypeParams), op, exprString(spec.Type))
	}
	e.symbols = append(e.symbols, sym)

	if st, ok := spec.Type.(*ast.StructType); ok && st.Fields != nil {
		for _, field := range st.Fields.List {
			for _, fieldName := range field.Names {
				fs := e.newSymbol(fieldName.Name, types.KindField, field, field.Doc)
				fs.Receiver = name
				fs.Signature = fieldName.Name + " " + exprString(field.Type)
				e.symbols = append(e.symbols, fs)
			}
		}
	}
}

func (e *symbolExtractor) extractValueSpec(spec *ast.ValueSpec, doc *ast.CommentGroup, tok token.Token) {
	kind := types.KindVar
	if tok == token.CONST {
		kind = types.KindConst
	}

	for _, name := range spec.Names {
		if name.Name == "_" {
			continue
		}
		sym := e.newSymbol(name.Name, kind, spec, doc)
		switch {
		case spec.Type != nil:
			sym.Signature = name.Name + " " + exprString(spec.Type)
		case len(spec.Values) > 0:
			sym.Signature = name.Name + " = ..."
		default:
			sym.Signature = name.Name
		}
		e.symbols = append(e.symbols, sym)
	}
}

func (e *symbolExtractor) position(pos token.Pos) types.Position {
	p := e.fset.Position(pos)
	return types.Position{Line: p.Line, Column: p.Column}
}

// receiverName returns the base type name of a method receiver, without
// pointer or type parameters
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

func funcSignature(fn *ast.FuncDecl) string {
	var sig strings.Builder
	sig.WriteString("func ")
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprString(fn.Recv.List[0].Type))
		sig.WriteString(") ")
	}
	sig.WriteString(fn.Name.Name)
	sig.WriteString(typeParams(fn.Type.TypeParams))
	sig.WriteString("(")
	sig.WriteString(fieldList(fn.Type.Params))
	sig.WriteString(")")

	if results := fieldList(fn.Type.Results); results != "" {
		if fn.Type.Results.NumFields() > 1 || len(fn.Type.Results.List[0].Names) > 0 {
			sig.WriteString(" (" + results + ")")
		} else {
			sig.WriteString(" " + results)
		}
	}
	return sig.String()
}

func typeParams(fl *ast.FieldList) string {
	if fl == nil || len(fl.List) == 0 {
		return ""
	}
	return "[" + fieldList(fl) + "]"
}

func fieldList(fl *ast.FieldList) string {
	if fl == nil || len(fl.List) == 0 {
		return ""
	}
	var parts []string
	for _, field := range fl.List {
		typ := exprString(field.Type)
		if len(field.Names) == 0 {
			parts = append(parts, typ)
			continue
		}
		for _, name := range field.Names {
			parts = append(parts, name.Name+" "+typ)
		}
	}
	return strings.Join(parts, ", ")
}

func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case nil:
		return ""
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		if t.Len != nil {
			return "[" + exprString(t.Len) + "]" + exprString(t.Elt)
		}
		return "[]" + exprString(t.Elt)
	case *ast.BasicLit:
		return t.Value
	case *ast.MapType:
		return "map[" + exprString(t.Key) + "]" + exprString(t.Value)
	case *ast.ChanType:
		switch t.Dir {
		case ast.SEND:
			return "chan<- " + exprString(t.Value)
		case ast.RECV:
			return "<-chan " + exprString(t.Value)
		}
		return "chan " + exprString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		if t.Methods.NumFields() == 0 {
			return "interface{}"
		}
		return "interface{ ... }"
	case *ast.StructType:
		return "struct{ ... }"
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.IndexExpr:
		return exprString(t.X) + "[" + exprString(t.Index) + "]"
	case *ast.IndexListExpr:
		args := make([]string, len(t.Indices))
		for i, idx := range t.Indices {
			args[i] = exprString(idx)
		}
		return exprString(t.X) + "[" + strings.Join(args, ", ") + "]"
	case *ast.UnaryExpr:
		return t.Op.String() + exprString(t.X)
	case *ast.BinaryExpr:
		return exprString(t.X) + " " + t.Op.String() + " " + exprString(t.Y)
	case *ast.ParenExpr:
		return "(" + exprString(t.X) + ")"
	default:
		return "..."
	}
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
