// Package require offers a minimal set of test assertions, modeled on the
// same handful of checks used throughout this repository's tests: equality,
// booleans, and error presence. It stops the test immediately on failure,
// the same way a real require package would.
package require

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// isNil reports whether v is a bare nil interface, or an interface
// wrapping a nil pointer/slice/map/chan/func — the usual Go footgun
// where a typed nil compares unequal to the untyped nil literal.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// Equal fails the test if want and got are not deeply equal.
func Equal(t *testing.T, want, got interface{}) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("not equal (-want +got):\n%s", diff)
	}
}

// NotEqual fails the test if want and got are deeply equal.
func NotEqual(t *testing.T, want, got interface{}) {
	t.Helper()
	if cmp.Diff(want, got) == "" {
		t.Fatalf("expected values to differ, both are %v", want)
	}
}

// True fails the test unless v is true.
func True(t *testing.T, v bool) {
	t.Helper()
	if !v {
		t.Fatal("expected true, got false")
	}
}

// False fails the test unless v is false.
func False(t *testing.T, v bool) {
	t.Helper()
	if v {
		t.Fatal("expected false, got true")
	}
}

// Nil fails the test unless v is nil, including a typed nil pointer,
// slice, or map boxed in the interface{}.
func Nil(t *testing.T, v interface{}) {
	t.Helper()
	if !isNil(v) {
		t.Fatalf("expected nil, got %v", v)
	}
}

// NotNil fails the test if v is nil, including a typed nil pointer,
// slice, or map boxed in the interface{}.
func NotNil(t *testing.T, v interface{}) {
	t.Helper()
	if isNil(v) {
		t.Fatal("expected non-nil value")
	}
}

// NoError fails the test if err is non-nil.
func NoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

// Error fails the test if err is nil.
func Error(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

// ErrorIs fails the test unless errors.Is(err, target) holds.
func ErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error chain to contain %v, got: %v", target, err)
	}
}
