package types

// ErrorRecord is a structured error produced while indexing a source file.
// TranslationUnit names the unit being indexed when the error occurred and is
// usually equal to FilePath.
type ErrorRecord struct {
	Message         string `json:"message"`
	FilePath        string `json:"file_path"`
	Line            int    `json:"line"`
	Column          int    `json:"column"`
	TranslationUnit string `json:"translation_unit"`
	Fatal           bool   `json:"fatal"`
	Indexed         bool   `json:"indexed"`
}

// Import represents an import statement in a Go file
type Import struct {
	Path  string `json:"path"`
	Alias string `json:"alias,omitempty"`
}

// FileFacts is everything extracted from a single source file
type FileFacts struct {
	SourcePath  string   `json:"source_path"`
	RelPath     string   `json:"rel_path"`
	ProjectRoot string   `json:"project_root"`
	PackageName string   `json:"package_name"`
	ContentHash [32]byte `json:"content_hash"`
	SizeBytes   int64    `json:"size_bytes"`
	Imports     []Import `json:"imports,omitempty"`
	Symbols     []Symbol `json:"symbols,omitempty"`
}

// ResultBundle is a worker's completed output for one or more work units.
// After it is popped from a result channel the coordinator owns it.
type ResultBundle struct {
	// SourcePaths lists the units the bundle accounts for
	SourcePaths []string      `json:"source_paths"`
	Files       []FileFacts   `json:"files,omitempty"`
	Errors      []ErrorRecord `json:"errors,omitempty"`
}

// NewResultBundle creates an empty bundle accounting for unit
func NewResultBundle(unit WorkUnit) *ResultBundle {
	return &ResultBundle{SourcePaths: []string{unit.SourcePath}}
}

// AddError appends an error record
func (b *ResultBundle) AddError(rec ErrorRecord) {
	b.Errors = append(b.Errors, rec)
}

// AddFile appends the facts for one file
func (b *ResultBundle) AddFile(f FileFacts) {
	b.Files = append(b.Files, f)
}

// HasErrors returns true if any error record is present
func (b *ResultBundle) HasErrors() bool {
	return len(b.Errors) > 0
}

// FatalErrors counts the fatal error records
func (b *ResultBundle) FatalErrors() int {
	n := 0
	for _, e := range b.Errors {
		if e.Fatal {
			n++
		}
	}
	return n
}

// SymbolCount returns the number of symbols across all files
func (b *ResultBundle) SymbolCount() int {
	n := 0
	for _, f := range b.Files {
		n += len(f.Symbols)
	}
	return n
}

// Merge appends other's contents into b. Only the coordinator merges bundles.
func (b *ResultBundle) Merge(other *ResultBundle) {
	if other == nil {
		return
	}
	b.SourcePaths = append(b.SourcePaths, other.SourcePaths...)
	b.Files = append(b.Files, other.Files...)
	b.Errors = append(b.Errors, other.Errors...)
}
