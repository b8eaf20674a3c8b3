package variables

import (
	"strings"
	"testing"

	"github.com/localpdk/pdk/internal/pdkerrors"
)

func TestProvenancePrecedence(t *testing.T) {
	r := New()
	r.Set("NAME", "built-in", BuiltIn)
	r.Set("NAME", "config", Configuration)
	r.Set("NAME", "env", Environment)

	// Lower-precedence write after a higher one must not win.
	r.Set("NAME", "built-in-again", BuiltIn)

	got, ok := r.Resolve("NAME")
	if !ok || got != "env" {
		t.Fatalf("Resolve(NAME) = (%q, %v), want (env, true)", got, ok)
	}
}

func TestProvenanceOrderIndependent(t *testing.T) {
	// Highest precedence set first should still win over a later, lower one.
	r := New()
	r.Set("NAME", "cli", CliArgument)
	r.Set("NAME", "secret", Secret)
	r.Set("NAME", "builtin", BuiltIn)

	got, _ := r.Resolve("NAME")
	if got != "cli" {
		t.Fatalf("Resolve(NAME) = %q, want cli", got)
	}
}

func TestExpandSimple(t *testing.T) {
	r := New()
	r.Set("NAME", "world", BuiltIn)

	got, err := Expand("hello ${NAME}", r)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("Expand = %q, want %q", got, "hello world")
	}
}

func TestExpandDefault(t *testing.T) {
	r := New()
	got, err := Expand("${MISSING:-fallback}", r)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "fallback" {
		t.Fatalf("Expand = %q, want fallback", got)
	}
}

func TestExpandNestedDefault(t *testing.T) {
	r := New()
	r.Set("INNER", "resolved", BuiltIn)
	got, err := Expand("${OUTER:-${INNER}}", r)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "resolved" {
		t.Fatalf("Expand = %q, want resolved", got)
	}
}

func TestExpandRequiredMissing(t *testing.T) {
	r := New()
	_, err := Expand("${MISSING:?MISSING must be set}", r)
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	var varErr *pdkerrors.VariableError
	if !errorsAs(err, &varErr) {
		t.Fatalf("expected *pdkerrors.VariableError, got %T", err)
	}
	if !strings.Contains(varErr.Error(), "MISSING") || !strings.Contains(varErr.Error(), "must be set") {
		t.Fatalf("error message = %q, want to contain MISSING and must be set", varErr.Error())
	}
}

func TestExpandLoop(t *testing.T) {
	r := New()
	r.Set("A", "${A}", BuiltIn)
	_, err := Expand("${A}", r)
	if err == nil {
		t.Fatal("expected loop error")
	}
	var varErr *pdkerrors.VariableError
	if !errorsAs(err, &varErr) || !varErr.Loop {
		t.Fatalf("expected loop VariableError, got %v", err)
	}
}

func errorsAs(err error, target **pdkerrors.VariableError) bool {
	ve, ok := err.(*pdkerrors.VariableError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
