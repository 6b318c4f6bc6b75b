package image

import "testing"

func TestAccumulateAndMerge(t *testing.T) {
	a := New(2, 2, []string{"r"})
	a.Accumulate("r", 0, 0, 1.0)
	a.Accumulate("r", 0, 0, 2.0)

	b := New(2, 2, []string{"r"})
	b.Accumulate("r", 0, 0, 5.0)

	if err := a.Merge(b); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := a.Buffer("r")[0]; got != 8.0 {
		t.Errorf("expected merged value 8.0, got %v", got)
	}
}

func TestWriteOutOfBoundsIgnored(t *testing.T) {
	img := New(2, 2, nil)
	img.Write("r", -1, 0, 1.0)
	img.Write("r", 5, 5, 1.0)
	if b := img.Buffer("r"); len(b) != 0 && b != nil {
		for _, v := range b {
			if v != 0 {
				t.Errorf("expected no out-of-bounds writes to land, buffer=%v", b)
			}
		}
	}
}

func TestMergeDimensionMismatch(t *testing.T) {
	a := New(2, 2, nil)
	b := New(3, 3, nil)
	if err := a.Merge(b); err == nil {
		t.Error("expected error merging mismatched dimensions")
	}
}
