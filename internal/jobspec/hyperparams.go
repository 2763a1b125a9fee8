package jobspec

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

type ValueKind string

const (
	ValueInt    ValueKind = "int"
	ValueFloat  ValueKind = "float"
	ValueString ValueKind = "string"
)

var (
	intPattern   = regexp.MustCompile(`^[+-]?\d+$`)
	floatPattern = regexp.MustCompile(`^[+-]?(\d+\.\d+|\d+(\.\d+)?[eE][+-]?\d+)$`)
)

// HyperParameter is one classified hyperparameter value. Exactly one of Int,
// Float or String is meaningful, selected by Kind. Raw keeps the wire form.
type HyperParameter struct {
	Name   string
	Kind   ValueKind
	Int    int64
	Float  float64
	String string
	Raw    string
}

type HyperParameters map[string]HyperParameter

// HyperParameterError lists every malformed entry found in one parse.
type HyperParameterError struct {
	Issues []string
}

func (e *HyperParameterError) Error() string {
	if len(e.Issues) == 0 {
		return "malformed hyperparameters"
	}
	return "malformed hyperparameters: " + strings.Join(e.Issues, "; ")
}

func (e *HyperParameterError) add(format string, args ...any) {
	e.Issues = append(e.Issues, fmt.Sprintf(format, args...))
}

func (e *HyperParameterError) orNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// ParseHyperParameters classifies every raw value as an integer, a float or a
// string. Integers are optionally signed digit runs; floats need a fractional
// part or an exponent; anything else, the empty value included, is a string.
// Empty names and numbers out of range are reported together, in name order.
func ParseHyperParameters(raw map[string]string) (HyperParameters, error) {
	out := make(HyperParameters, len(raw))
	issues := &HyperParameterError{}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		value := raw[name]
		if strings.TrimSpace(name) == "" {
			issues.add("empty name (value %q)", value)
			continue
		}
		trimmed := strings.TrimSpace(value)
		hp := HyperParameter{Name: name, Raw: value}
		switch {
		case intPattern.MatchString(trimmed):
			n, err := strconv.ParseInt(trimmed, 10, 64)
			if err != nil {
				issues.add("%s: integer %q out of range", name, trimmed)
				continue
			}
			hp.Kind = ValueInt
			hp.Int = n
		case floatPattern.MatchString(trimmed):
			f, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				issues.add("%s: float %q out of range", name, trimmed)
				continue
			}
			hp.Kind = ValueFloat
			hp.Float = f
		default:
			hp.Kind = ValueString
			hp.String = value
		}
		out[name] = hp
	}

	if err := issues.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// Names returns the parameter names in sorted order.
func (h HyperParameters) Names() []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Attrs flattens the parameters into slog-style key/value pairs.
func (h HyperParameters) Attrs() []any {
	attrs := make([]any, 0, 2*len(h))
	for _, name := range h.Names() {
		hp := h[name]
		switch hp.Kind {
		case ValueInt:
			attrs = append(attrs, name, hp.Int)
		case ValueFloat:
			attrs = append(attrs, name, hp.Float)
		default:
			attrs = append(attrs, name, hp.String)
		}
	}
	return attrs
}
