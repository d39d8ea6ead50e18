package block

import "testing"

func TestEqualityIgnoresBodyAndCreated(t *testing.T) {
	a := New(3, 1, []byte("payload-a"), 10)
	b := New(3, 1, []byte("payload-b"), 99)
	if !a.Equal(b) {
		t.Error("blocks with same slot/proposer but different body/created should be equal")
	}
}

func TestBlankBlocksFromDifferentNodesAreEqual(t *testing.T) {
	a := NewBlank(5, 10)
	b := NewBlank(5, 20)
	if !a.Equal(b) {
		t.Error("two independently fabricated blank blocks for the same slot must compare equal")
	}
}

func TestNotEqualDifferentSlotOrProposer(t *testing.T) {
	a := New(1, 0, nil, 0)
	if a.Equal(New(2, 0, nil, 0)) {
		t.Error("different slots must not be equal")
	}
	if a.Equal(New(1, 1, nil, 0)) {
		t.Error("different proposers must not be equal")
	}
}

func TestExpectedProposer(t *testing.T) {
	cases := []struct {
		slot SlotID
		n    int
		want NodeID
	}{
		{0, 3, 0},
		{1, 3, 1},
		{2, 3, 2},
		{3, 3, 0},
		{9, 3, 0},
	}
	for _, c := range cases {
		if got := ExpectedProposer(c.slot, c.n); got != c.want {
			t.Errorf("ExpectedProposer(%d, %d) = %v, want %v", c.slot, c.n, got, c.want)
		}
	}
}

func TestValidProposer(t *testing.T) {
	if !ValidProposer(4, Blank, 3) {
		t.Error("blank proposer is always valid")
	}
	if !ValidProposer(4, ExpectedProposer(4, 3), 3) {
		t.Error("the expected proposer must be valid")
	}
	if ValidProposer(4, ExpectedProposer(4, 3)+1, 3) {
		t.Error("a non-expected, non-blank proposer must be invalid")
	}
}

func TestNodeIDString(t *testing.T) {
	if Blank.String() != "blank" {
		t.Errorf("Blank.String() = %q, want %q", Blank.String(), "blank")
	}
	if NodeID(2).String() == "" {
		t.Error("non-blank NodeID should render")
	}
}
