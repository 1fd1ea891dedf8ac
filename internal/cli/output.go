package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The registry or gateway refused the request
	ExitCommandError = 2 // Bad arguments or an unreachable endpoint
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

var (
	labelColor = color.New(color.FgCyan)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
)

// printer writes either aligned key/value text or the raw JSON payload.
type printer struct {
	format string
	w      io.Writer
	errW   io.Writer
	// verbose enables step logging on errW.
	verbose bool
}

func newPrinter(opts *RootOptions, w, errW io.Writer) *printer {
	return &printer{format: opts.Format, w: w, errW: errW, verbose: opts.Verbose}
}

// result prints data as JSON, or the fields as "key: value" lines.
func (p *printer) result(data any, fields ...field) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	for _, f := range fields {
		labelColor.Fprintf(p.w, "%-14s", f.key+":")
		fmt.Fprintf(p.w, " %s\n", f.value)
	}
	return nil
}

func (p *printer) step(format string, args ...any) {
	if !p.verbose {
		return
	}
	warnColor.Fprintf(p.errW, "> "+format+"\n", args...)
}

type field struct {
	key   string
	value string
}

func yesNo(ok bool) string {
	if ok {
		return okColor.Sprint("yes")
	}
	return warnColor.Sprint("no")
}
