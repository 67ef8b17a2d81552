package directive

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownOperation is matched by every *UnknownOperationError.
var ErrUnknownOperation = errors.New("unknown operation")

// UnknownOperationError names the directive token whose operation is not registered.
type UnknownOperationError struct {
	Operation string
	Token     string
	Index     int
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q in directive %q at token %d", e.Operation, e.Token, e.Index)
}

func (e *UnknownOperationError) Is(target error) bool {
	return target == ErrUnknownOperation
}

// Operation is an entry of a Table.
type Operation interface {
	// Arity is the number of argument tokens the operation consumes. A
	// negative arity consumes every token up to the next directive marker.
	Arity() int
	Call(ctx context.Context, args []string) (string, error)
}

// Table resolves operation names, as normalised by NormalizeName.
type Table interface {
	Lookup(name string) (Operation, bool)
}

// MapTable is a Table backed by a map. Keys are normalised on lookup so both
// "add" and "/add" resolve the same entry.
type MapTable map[string]Operation

func (t MapTable) Lookup(name string) (Operation, bool) {
	name = NormalizeName(name)
	if op, ok := t[name]; ok {
		return op, true
	}
	op, ok := t[strings.TrimPrefix(name, "/")]
	return op, ok
}

// Variadic is the arity of operations that take every remaining token.
const Variadic = -1

type funcOperation struct {
	arity int
	fn    func(ctx context.Context, args []string) (any, error)
}

func (f funcOperation) Arity() int {
	return f.arity
}

func (f funcOperation) Call(ctx context.Context, args []string) (string, error) {
	v, err := f.fn(ctx, args)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// Func adapts fn into an Operation; non-string results are formatted with fmt.Sprint.
func Func(arity int, fn func(ctx context.Context, args []string) (any, error)) Operation {
	return funcOperation{arity: arity, fn: fn}
}
