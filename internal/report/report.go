// Package report implements the error taxonomy produced by every stage of
// the extraction pipeline. Reports never abort a run; they accumulate on a
// TaskResult and are drained by the CLI layer at the end.
package report

import "fmt"

// Kind identifies which stage produced a Report.
type Kind int

const (
	// ScanError: the pattern matcher failed or timed out on a file.
	ScanError Kind = iota
	// ValidationError: a handler raised while parsing a candidate header.
	ValidationError
	// ExtractError: the external extractor binary failed.
	ExtractError
	// UnknownError: any unclassified exception during Task processing.
	UnknownError
	// InvalidPath: the Task path contains characters that would confuse
	// downstream tools.
	InvalidPath
	// ExtractDirectoriesExist: the target extraction directory already
	// exists and force-extract was not requested.
	ExtractDirectoriesExist
)

func (k Kind) String() string {
	switch k {
	case ScanError:
		return "scan-error"
	case ValidationError:
		return "validation-error"
	case ExtractError:
		return "extract-error"
	case UnknownError:
		return "unknown-error"
	case InvalidPath:
		return "invalid-path"
	case ExtractDirectoriesExist:
		return "extract-directories-exist"
	default:
		return "unknown-kind"
	}
}

// Report describes one non-fatal failure encountered while processing a
// Task. Reports accumulate on a TaskResult and are surfaced to the user,
// never raised as Go errors past the boundary that produced them.
type Report struct {
	Kind    Kind
	Path    string
	Handler string
	Err     error
}

func (r Report) Error() string {
	if r.Err == nil {
		return fmt.Sprintf("%s: %s", r.Kind, r.Path)
	}

	if r.Handler != "" {
		return fmt.Sprintf("%s: %s (%s): %v", r.Kind, r.Path, r.Handler, r.Err)
	}

	return fmt.Sprintf("%s: %s: %v", r.Kind, r.Path, r.Err)
}

// New builds a Report of the given Kind for path, wrapping err.
func New(kind Kind, path string, err error) Report {
	return Report{Kind: kind, Path: path, Err: err}
}

// WithHandler attaches the name of the handler that produced the Report.
func (r Report) WithHandler(name string) Report {
	r.Handler = name
	return r
}
