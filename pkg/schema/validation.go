package schema

import (
	"fmt"
	"io"
	"strings"
)

// ValidationSeverity ranks a lint issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is one lint finding. Path locates it in the diagram, e.g.
// "diagram" or "tasks[Task3].condition".
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%-7s %s: %s", i.Severity, i.Path, i.Message)
}

// ValidationResult collects the findings of a diagram lint. Only errors make
// a diagram unusable.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid reports whether no errors were found.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Clean reports whether nothing at all was found.
func (r *ValidationResult) Clean() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0
}

func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityError})
}

func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityWarning})
}

// Merge appends the findings of other. A nil other is ignored.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Issues returns errors followed by warnings.
func (r *ValidationResult) Issues() []ValidationIssue {
	out := make([]ValidationIssue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// WriteText writes one line per issue, or "ok" when the result is clean.
func (r *ValidationResult) WriteText(w io.Writer) error {
	if r.Clean() {
		_, err := io.WriteString(w, "ok\n")
		return err
	}
	var b strings.Builder
	for _, issue := range r.Issues() {
		b.WriteString(issue.String())
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ToError returns nil for a valid result. Otherwise the error names the first
// failing location, and the details carry every finding.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	first := r.Errors[0]
	msg := first.Path + ": " + first.Message
	if n := len(r.Errors); n > 1 {
		msg = fmt.Sprintf("lint found %d errors, first at %s", n, msg)
	}

	return NewError(ErrCodeValidation, msg).WithDetails(map[string]any{
		"error_count":   len(r.Errors),
		"warning_count": len(r.Warnings),
		"errors":        r.Errors,
		"warnings":      r.Warnings,
	})
}
