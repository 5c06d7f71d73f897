package testutil

import (
	"strings"
	"testing"
)

// Scenario runs fn as a subtest named after the behaviour under test. Steps
// nest inside it: a step only runs once the steps enclosing it succeeded.
func Scenario(t *testing.T, name string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Scenario:", name, fn)
}

func Given(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Then", desc, fn)
}

func And(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "And", desc, fn)
}

// step runs fn as "<keyword> <desc>" and, on failure, logs the chain of
// steps that led there.
func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	desc = strings.TrimSpace(desc)
	if desc == "" {
		t.Fatalf("%s step without a description", keyword)
	}
	return t.Run(keyword+" "+desc, func(t *testing.T) {
		t.Cleanup(func() {
			if t.Failed() {
				t.Logf("failed at %s", strings.ReplaceAll(t.Name(), "/", " > "))
			}
		})
		fn(t)
	})
}
