package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sweeptrace/internal/config"
)

// ValidationIssue is one problem found in a configuration file.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// FileValidation holds the validation result of one file.
type FileValidation struct {
	Path   string            `json:"path"`
	Valid  bool              `json:"valid"`
	Name   string            `json:"name,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>...",
		Short: "Validate configuration files",
		Long: `Validate YAML or CUE configuration files without starting a scope.

Every file is checked against the configuration schema and the sweep
rules; all problems are reported, not just the first.

Exit codes:
  0 - All files valid
  1 - At least one file has problems
  2 - A file could not be found`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	missing := false

	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)

		fv := FileValidation{Path: path, Valid: true}
		cfg, issues := ValidateFile(path)
		for _, issue := range issues {
			if issue.Code == ErrCodeNotFound {
				missing = true
			}
		}
		if len(issues) > 0 {
			fv.Errors = issues
			fv.Valid = false
			result.Valid = false
		} else {
			fv.Name = cfg.Name
		}
		result.Files = append(result.Files, fv)
	}

	exitCode := ExitSuccess
	switch {
	case missing:
		exitCode = ExitCommandError
	case !result.Valid:
		exitCode = ExitFailure
	}

	if formatter.JSON() {
		var failed *CLIError
		if !result.Valid {
			first := firstIssue(result)
			failed = &CLIError{Code: first.Code, Message: first.Message}
		}
		if err := formatter.Result(result, failed); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}

	if exitCode != ExitSuccess {
		return NewExitError(exitCode, fmt.Sprintf("validation failed with %d error(s)", countIssues(result)))
	}
	return nil
}

func toIssue(err error) ValidationIssue {
	var le *LoadError
	if !errors.As(err, &le) {
		return ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
	}
	issue := ValidationIssue{Code: le.Code, Field: le.Field, Message: le.Message}
	if le.Pos.IsValid() {
		issue.Line = le.Pos.Line()
		issue.Column = le.Pos.Column()
	}
	return issue
}

func firstIssue(r ValidationResult) ValidationIssue {
	for _, f := range r.Files {
		if len(f.Errors) > 0 {
			return f.Errors[0]
		}
	}
	return ValidationIssue{}
}

func countIssues(r ValidationResult) int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Errors)
	}
	return n
}

// outputValidateText prints one block per file.
func outputValidateText(f *OutputFormatter, result ValidationResult) {
	w := f.Writer
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s (%s)\n", fv.Path, fv.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fv.Path)
		for _, issue := range fv.Errors {
			loc := ""
			if issue.Line > 0 {
				loc = fmt.Sprintf("line %d: ", issue.Line)
			}
			field := ""
			if issue.Field != "" {
				field = issue.Field + ": "
			}
			fmt.Fprintf(w, "  %s%s: %s%s\n", loc, issue.Code, field, issue.Message)
		}
	}
	if !result.Valid {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "✗ Validation failed")
	}
}

// ValidateFile validates one configuration file and returns its problems.
func ValidateFile(path string) (config.Config, []ValidationIssue) {
	cfg, errs := LoadConfig(path)
	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		issues = append(issues, toIssue(err))
	}
	return cfg, issues
}
