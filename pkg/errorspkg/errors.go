// Package errorspkg provides common app errors.
package errorspkg

import "errors"

// ErrInternal indicates an unexpected failure whose cause has been logged.
var ErrInternal = errors.New("internal")
