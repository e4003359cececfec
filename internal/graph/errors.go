package graph

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateNode = errors.New("duplicate node")
	ErrUnknownNode   = errors.New("unknown node")
	ErrDuplicateEdge = errors.New("duplicate edge")
	ErrNoEdge        = errors.New("no edge between nodes")
	ErrUnknownPath   = errors.New("unknown path")
	ErrDuplicatePath = errors.New("duplicate path")
	ErrEmptyPath     = errors.New("path has no nodes")
)

// ConfigError is a graph construction error. It names the operation and the
// node or path at fault and wraps one of the sentinel errors above.
type ConfigError struct {
	Op   string
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s '%s': %v", e.Op, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(op, name string, err error) error {
	return &ConfigError{Op: op, Name: name, Err: err}
}
