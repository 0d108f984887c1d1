package hir

import (
	"testing"

	"github.com/konteck/candor/internal/testing/require"
)

// TestAddPredecessorSingleCallCopiesEnvironment exercises the first-call
// branch of the two-call merge protocol: a block with a single
// predecessor just inherits that predecessor's environment verbatim, no
// phi involved.
func TestAddPredecessorSingleCallCopiesEnvironment(t *testing.T) {
	b := New(1, nil)
	entry := b.allocateBasicBlockTracked()
	b.SetCurrentBlock(entry)
	b.newInstr(KindEntry, true)
	lit := b.emitLiteralInt(7)
	b.assign(0, lit)

	succ := b.allocateBasicBlockTracked()
	b.AddPredecessor(succ, entry)

	require.True(t, succ.env.get(0) == lit)
	require.Nil(t, succ.env.phiAt(0))
}

// TestAddPredecessorSecondCallSynthesizesPhiOnDisagreement exercises the
// second-call branch: two predecessors with different definitions for the
// same slot must produce a phi carrying both.
func TestAddPredecessorSecondCallSynthesizesPhiOnDisagreement(t *testing.T) {
	b := New(1, nil)
	entry := b.allocateBasicBlockTracked()
	b.SetCurrentBlock(entry)
	b.newInstr(KindEntry, true)

	left := b.allocateBasicBlockTracked()
	b.SetCurrentBlock(left)
	litLeft := b.emitLiteralInt(1)
	b.assign(0, litLeft)

	right := b.allocateBasicBlockTracked()
	b.SetCurrentBlock(right)
	litRight := b.emitLiteralInt(2)
	b.assign(0, litRight)

	join := b.allocateBasicBlockTracked()
	b.AddPredecessor(join, left)
	b.AddPredecessor(join, right)

	phi := join.env.phiAt(0)
	require.NotNil(t, phi)
	require.True(t, phi.IsPhi())
	require.Equal(t, 2, phi.PhiPredCount)
	require.Equal(t, 2, len(phi.Args))
	require.True(t, phi.Args[0] == litLeft)
	require.True(t, phi.Args[1] == litRight)
	require.True(t, join.env.get(0) == phi)
}

// TestAddPredecessorSecondCallSkipsPhiOnAgreement covers the case where
// both predecessors already agree on the same definition: no phi should
// be synthesized at all.
func TestAddPredecessorSecondCallSkipsPhiOnAgreement(t *testing.T) {
	b := New(1, nil)
	entry := b.allocateBasicBlockTracked()
	b.SetCurrentBlock(entry)
	b.newInstr(KindEntry, true)
	shared := b.emitLiteralInt(9)
	b.assign(0, shared)

	left := b.allocateBasicBlockTracked()
	b.AddPredecessor(left, entry)
	right := b.allocateBasicBlockTracked()
	b.AddPredecessor(right, entry)

	join := b.allocateBasicBlockTracked()
	b.AddPredecessor(join, left)
	b.AddPredecessor(join, right)

	require.Nil(t, join.env.phiAt(0))
	require.True(t, join.env.get(0) == shared)
}

func TestAddPredecessorPanicsOnThirdPredecessor(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on third AddPredecessor call")
		}
	}()
	b := New(0, nil)
	a := b.allocateBasicBlockTracked()
	c := b.allocateBasicBlockTracked()
	d := b.allocateBasicBlockTracked()
	join := b.allocateBasicBlockTracked()
	b.AddPredecessor(join, a)
	b.AddPredecessor(join, c)
	b.AddPredecessor(join, d)
}

func TestAddSuccessorPanicsOnThirdSuccessor(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on third successor")
		}
	}()
	b := New(0, nil)
	src := b.allocateBasicBlockTracked()
	j1 := b.allocateBasicBlockTracked()
	j2 := b.allocateBasicBlockTracked()
	j3 := b.allocateBasicBlockTracked()
	b.AddPredecessor(j1, src)
	b.AddPredecessor(j2, src)
	b.AddPredecessor(j3, src)
}
