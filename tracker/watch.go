package tracker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/cel-go/cel"

	"github.com/embedsync/cascade/deephash"
	"github.com/embedsync/cascade/entity"
)

// Watch describes which part of a source document is digested for change
// detection: either a list of watched fields, or a CEL projection over the
// whole document.
type Watch struct {
	fields  []string
	expr    string
	program cel.Program
}

// Fields builds a Watch over the named fields. A missing field digests as
// a null value.
func Fields(fields ...string) *Watch {
	return &Watch{fields: fields}
}

// Expr builds a Watch from a CEL expression over the variable "doc" (the
// source document including its id). The expression must evaluate to a
// string, e.g. `doc.name + "|" + doc.plan`. It is compiled once, at bind
// time.
func Expr(expr string) (*Watch, error) {
	env, err := cel.NewEnv(
		cel.Variable("doc", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Watch{expr: expr, program: prg}, nil
}

// Digest computes the watch digest of an instance
func (w *Watch) Digest(inst *entity.Instance) (string, error) {
	if w.program != nil {
		return w.exprDigest(inst)
	}
	return w.fieldsDigest(inst)
}

// fieldsDigest combines the deephash of every watched field's value into
// one digest
func (w *Watch) fieldsDigest(inst *entity.Instance) (string, error) {
	var sb strings.Builder
	for _, field := range w.fields {
		h, err := deephash.Hash(inst.Field(field))
		if err != nil {
			return "", fmt.Errorf("watched field %q: %w", field, err)
		}
		sb.WriteString(strconv.FormatUint(h, 10))
	}
	return digestString(sb.String()), nil
}

func (w *Watch) exprDigest(inst *entity.Instance) (string, error) {
	out, _, err := w.program.Eval(map[string]any{
		"doc": inst.Doc(),
	})
	if err != nil {
		return "", fmt.Errorf("CEL evaluation error: %w", err)
	}

	projected, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("watch expression %q did not return string, got %T", w.expr, out.Value())
	}
	return digestString(projected), nil
}

func digestString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
