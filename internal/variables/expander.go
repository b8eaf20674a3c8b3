package variables

import (
	"fmt"
	"strings"

	"github.com/localpdk/pdk/internal/pdkerrors"
)

// Expand replaces every `${NAME}`, `${NAME:-default}` and `${NAME:?msg}`
// reference in input with values from r, recursing into nested expansions
// (an expansion's default/msg text may itself contain `${...}`) and into a
// resolved value that itself contains further references. A variable that
// transitively expands into a reference to itself is reported as a
// VariableError with Loop set, per spec.md §7/§8 scenario 7.
func Expand(input string, r *Resolver) (string, error) {
	return expand(input, r, nil)
}

func expand(input string, r *Resolver, stack []string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(input) {
		if input[i] == '$' && i+1 < len(input) && input[i+1] == '{' {
			end, err := matchingBrace(input, i+1)
			if err != nil {
				return "", err
			}
			inner := input[i+2 : end]
			resolved, err := expandOne(inner, r, stack)
			if err != nil {
				return "", err
			}
			out.WriteString(resolved)
			i = end + 1
			continue
		}
		out.WriteByte(input[i])
		i++
	}
	return out.String(), nil
}

// matchingBrace returns the index of the "}" matching the "{" at openIdx,
// accounting for nested "${...}" inside the expression.
func matchingBrace(s string, openIdx int) (int, error) {
	depth := 1
	i := openIdx + 1
	for i < len(s) {
		switch {
		case s[i] == '{' && i > 0 && s[i-1] == '$':
			depth++
		case s[i] == '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
		i++
	}
	return 0, fmt.Errorf("variables: unterminated expansion in %q", s)
}

// expandOne handles the body of a single "${...}" (without the braces):
// NAME, NAME:-default, or NAME:?msg.
func expandOne(body string, r *Resolver, stack []string) (string, error) {
	name, op, rest := splitOp(body)

	for _, seen := range stack {
		if seen == name {
			return "", &pdkerrors.VariableError{Name: name, Loop: true}
		}
	}

	value, ok := r.Resolve(name)
	switch op {
	case "":
		if !ok {
			return "", nil
		}
	case ":-":
		if !ok {
			def, err := expand(rest, r, stack)
			if err != nil {
				return "", err
			}
			return def, nil
		}
	case ":?":
		if !ok {
			msg, err := expand(rest, r, stack)
			if err != nil {
				return "", err
			}
			if msg == "" {
				msg = name + " must be set"
			}
			return "", &pdkerrors.VariableError{Name: name, Message: fmt.Sprintf("%s: %s", name, msg)}
		}
	}

	// Recurse into the resolved value itself, so a variable may reference
	// another variable transitively.
	return expand(value, r, append(stack, name))
}

// splitOp splits "NAME", "NAME:-default" or "NAME:?msg" into its parts.
func splitOp(body string) (name, op, rest string) {
	for _, candidate := range []string{":-", ":?"} {
		if idx := strings.Index(body, candidate); idx >= 0 {
			return body[:idx], candidate, body[idx+len(candidate):]
		}
	}
	return body, "", ""
}
