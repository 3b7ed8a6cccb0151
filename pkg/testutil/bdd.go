// Package testutil carries shared test helpers.
package testutil

import "testing"

// Given, When, and Then run labelled subtests so a behavioral test reads as a
// scenario narrative in verbose output. Steps run in order on the parent test.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	step(t, "Then", desc, fn)
}

func step(t *testing.T, label, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(label+" "+desc, fn)
}
