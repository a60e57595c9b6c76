package parser

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// DefaultCacheSize is the number of parsed files kept by New
const DefaultCacheSize = 4096

// syntaxError is a position-only error, independent of the file path so
// that cached facts can be shared by files with identical content
type syntaxError struct {
	line, column int
	msg          string
}

type parsed struct {
	packageName string
	imports     []types.Import
	symbols     []types.Symbol
	errors      []syntaxError
}

// Parser extracts symbols, imports and package information from Go files.
// It is safe for concurrent use.
type Parser struct {
	cache *lru.Cache[[32]byte, *parsed]
}

// New creates a Parser with the default cache size
func New() *Parser {
	p, _ := NewWithCacheSize(DefaultCacheSize)
	return p
}

// NewWithCacheSize creates a Parser caching up to size files
func NewWithCacheSize(size int) (*Parser, error) {
	cache, err := lru.New[[32]byte, *parsed](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}
	return &Parser{cache: cache}, nil
}

// Index reads and parses the unit's source file
func (p *Parser) Index(ctx context.Context, unit types.WorkUnit) (*types.ResultBundle, error) {
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(unit.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	hash := sha256.Sum256(content)
	facts, ok := p.cache.Get(hash)
	if !ok {
		facts = parseSource(unit.SourcePath, content)
		p.cache.Add(hash, facts)
	}

	bundle := types.NewResultBundle(unit)
	file := types.FileFacts{
		SourcePath:  unit.SourcePath,
		RelPath:     unit.RelPath(),
		ProjectRoot: unit.ProjectRoot,
		PackageName: facts.packageName,
		ContentHash: hash,
		SizeBytes:   int64(len(content)),
		Imports:     facts.imports,
	}
	if unit.IncludeTests || !IsTestFile(unit.SourcePath) {
		file.Symbols = facts.symbols
	}
	bundle.AddFile(file)

	for _, se := range facts.errors {
		bundle.AddError(types.ErrorRecord{
			Message:         se.msg,
			FilePath:        unit.SourcePath,
			Line:            se.line,
			Column:          se.column,
			TranslationUnit: unit.SourcePath,
			Fatal:           false,
			Indexed:         true,
		})
	}
	return bundle, nil
}

// CacheLen returns the number of cached files
func (p *Parser) CacheLen() int {
	return p.cache.Len()
}

// IsTestFile reports whether path names a Go test file
func IsTestFile(path string) bool {
	return strings.HasSuffix(path, "_test.go")
}

func parseSource(filePath string, content []byte) *parsed {
	fset := token.NewFileSet()
	result := &parsed{}

	file, err := parser.ParseFile(fset, filePath, content, parser.ParseComments)
	if err != nil {
		result.errors = syntaxErrors(err)
	}
	// parser.ParseFile returns a partial AST on syntax errors
	if file == nil {
		return result
	}

	if file.Name != nil {
		result.packageName = file.Name.Name
	}
	result.imports = extractImports(file)

	e := &symbolExtractor{fset: fset, packageName: result.packageName}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			e.extractFunction(d)
		case *ast.GenDecl:
			e.extractGenDecl(d)
		}
	}
	result.symbols = e.symbols
	return result
}

func syntaxErrors(err error) []syntaxError {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		out := make([]syntaxError, 0, len(list))
		for _, e := range list {
			out = append(out, syntaxError{line: e.Pos.Line, column: e.Pos.Column, msg: e.Msg})
		}
		return out
	}
	return []syntaxError{{line: 1, column: 1, msg: err.Error()}}
}

func extractImports(file *ast.File) []types.Import {
	imports := make([]types.Import, 0, len(file.Imports))
	for _, imp := range file.Imports {
		spec := types.Import{Path: strings.Trim(imp.Path.Value, `"`)}
		if imp.Name != nil {
			spec.Alias = imp.Name.Name
		}
		imports = append(imports, spec)
	}
	return imports
}
