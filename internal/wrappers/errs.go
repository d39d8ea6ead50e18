// Package wrappers holds small error-aggregation helpers shared by
// constructors that perform several independent checks before deciding
// whether to fail. Adapted from the luxfi-consensus donor's
// utils/wrappers package.
package wrappers

import (
	"errors"
	"fmt"
	"strings"
)

// Errs collects zero or more errors so a constructor can run every check it
// has before reporting a single combined failure, rather than stopping at
// the first one.
type Errs struct {
	errs []error
}

// Add appends err to the collection. A nil err is a no-op.
func (e *Errs) Add(err error) {
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

// Errored reports whether any error has been added.
func (e *Errs) Errored() bool {
	return len(e.errs) > 0
}

// Err returns nil if no error was added, the single error if exactly one
// was added, or a combined error listing all of them otherwise.
func (e *Errs) Err() error {
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d errors occurred:", len(e.errs))
		for _, err := range e.errs {
			sb.WriteString("\n\t* ")
			sb.WriteString(err.Error())
		}
		return errors.New(sb.String())
	}
}
