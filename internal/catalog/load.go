package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/docmap/internal/model"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll reports every model that fails to compile.
	LoadModeCollectAll
)

// Load error codes, shared by every CLI command.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // file write error
)

// LoadResult contains the models loaded from a directory.
type LoadResult struct {
	Catalog   *Catalog
	CUEValue  cue.Value
	FileCount int
}

// LoadError is an error that occurred while loading a models directory.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads and compiles every model declared in the CUE package at dir.
// In LoadModeCollectAll, models that fail to compile are reported and the
// rest are still bound.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("models directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing models directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(files)}
	if mode == LoadModeFailFast {
		cat, err := Compile(value)
		if err != nil {
			return result, []error{convertCompileError(err)}
		}
		result.Catalog = cat
		return result, nil
	}

	cat, errs := compileCollect(value)
	result.Catalog = cat
	return result, errs
}

// compileCollect is Compile that keeps going past broken models. References
// to models that failed to compile are reported as well.
func compileCollect(v cue.Value) (*Catalog, []error) {
	models := v.LookupPath(cue.ParsePath("model"))
	if !models.Exists() {
		return New(), []error{&LoadError{Code: ErrCodeGeneric, Message: "no models declared"}}
	}
	iter, err := models.Fields()
	if err != nil {
		return New(), []error{convertCompileError(formatCUEError(err))}
	}

	var (
		errs    []error
		pending []pendingRef
		cat     = New()
	)
	for iter.Next() {
		m, refs, err := CompileModel(iter.Value())
		if err == nil {
			err = cat.Add(m)
		}
		if err != nil {
			errs = append(errs, convertCompileError(err))
			continue
		}
		pending = append(pending, refs...)
	}
	for _, ref := range pending {
		if err := bind(cat, []pendingRef{ref}); err != nil {
			errs = append(errs, convertCompileError(err))
		}
	}
	return cat, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compile error to a LoadError with position
// info.
func convertCompileError(err error) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		msg := compileErr.Field + ": " + compileErr.Message
		if compileErr.Model != "" {
			msg = compileErr.Model + "." + msg
		}
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: msg,
			Pos:     compileErr.Pos,
		}
	}
	if code := model.CodeOf(err); code != "" {
		return &LoadError{Code: string(code), Message: err.Error()}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}
