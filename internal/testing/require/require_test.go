package require

import (
	"errors"
	"fmt"
	"testing"
)

type dummy struct{ n int }

func TestIsNilHandlesTypedNilPointer(t *testing.T) {
	var p *dummy
	var asInterface interface{} = p
	if asInterface == nil {
		t.Fatal("expected boxing a nil pointer in an interface to compare non-nil against the untyped literal")
	}
	if !isNil(asInterface) {
		t.Fatal("isNil must see through the typed-nil wrapper")
	}
}

func TestIsNilRejectsNonNilValue(t *testing.T) {
	v := &dummy{n: 1}
	if isNil(v) {
		t.Fatal("isNil must not treat a populated pointer as nil")
	}
}

func TestNilAndNotNilOnBareInterface(t *testing.T) {
	Nil(t, nil)
	NotNil(t, 5)
}

func TestErrorIsFollowsWrappedChain(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := fmt.Errorf("context: %w", sentinel)
	ErrorIs(t, wrapped, sentinel)
}

func TestEqualAndNotEqualOnPlainValues(t *testing.T) {
	Equal(t, 3, 3)
	NotEqual(t, 3, 4)
}
