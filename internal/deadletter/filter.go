package deadletter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over dead-letter entries. The
// expression sees:
//
//	queue          string
//	id             string  (hex)
//	size           int     body length in bytes
//	text           string  body as text
//	json           dyn     body parsed as JSON, null if it is not JSON
//	receive_count  int
//	enqueued_ms    int
//	dead_ms        int
//	now_ms         int
//
// A nil *Filter matches everything.
type Filter struct {
	expr string
	prog cel.Program
}

// CompileFilter parses and type-checks expr. An empty expression yields a
// nil Filter.
func CompileFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("queue", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("receive_count", cel.IntType),
		cel.Variable("enqueued_ms", cel.IntType),
		cel.Variable("dead_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, &FilterTypeError{Expr: expr, Got: out.String()}
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: expr, prog: prog}, nil
}

// FilterTypeError reports an expression that does not yield a bool.
type FilterTypeError struct {
	Expr string
	Got  string
}

func (e *FilterTypeError) Error() string {
	return "deadletter: filter " + e.Expr + " must be bool, got " + e.Got
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against e. Evaluation errors count as no match.
func (f *Filter) Match(e Entry, now time.Time) bool {
	if f == nil {
		return true
	}
	var doc any
	if err := json.Unmarshal(e.Body, &doc); err != nil {
		doc = nil
	}
	out, _, err := f.prog.Eval(map[string]any{
		"queue":         e.Queue,
		"id":            e.ID.String(),
		"size":          int64(len(e.Body)),
		"text":          string(e.Body),
		"json":          doc,
		"receive_count": int64(e.ReceiveCount),
		"enqueued_ms":   e.EnqueuedAt.UnixMilli(),
		"dead_ms":       e.DeadAt.UnixMilli(),
		"now_ms":        now.UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
