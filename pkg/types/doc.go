// Package types provides the value types shared by the build coordinator and
// the worker processes.
//
// A WorkUnit describes one source file to index. Workers turn each unit into a
// ResultBundle holding the extracted facts (package, imports, symbols) and any
// error records produced while indexing:
//
//	unit := types.WorkUnit{ID: "a1", SourcePath: "/src/app/main.go", ProjectRoot: "/src/app"}
//	bundle := types.NewResultBundle(unit)
//	bundle.AddError(types.ErrorRecord{Message: "syntax error", FilePath: unit.SourcePath, Line: 3, Column: 1})
//
// Bundles cross process boundaries JSON encoded, so every field is exported and
// tagged.
package types
