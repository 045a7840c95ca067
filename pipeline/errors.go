package pipeline

import (
	"errors"
	"fmt"

	"github.com/g2gml/pg/pg"
)

// ErrResource marks failures of the staging stores or the output sinks
var ErrResource = errors.New("resource error")

func resourceError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResource, fmt.Sprintf(format, args...))
}

// LineError ties a parse failure to its 1-based line in the input
type LineError struct {
	Line int
	Err  error
}

// Error implements the error interface. Syntax errors are reported at their
// position in the input rather than in the line.
func (e *LineError) Error() string {
	var se *pg.SyntaxError
	if errors.As(e.Err, &se) {
		return fmt.Sprintf("line %d, column %d: %s", e.Line+se.Line-1, se.Column, se.Message())
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error
func (e *LineError) Unwrap() error {
	return e.Err
}

// protocolError reports a message that is not valid in the coordinator's state
type protocolError struct {
	worker int
	msg    response
	state  State
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("worker %d sent unexpected %s while %s", e.worker, e.msg.kind(), e.state)
}
