package geometry

import "testing"

func TestNewValidatesDims(t *testing.T) {
	if _, err := New(0, Dim1(1), Dim1(1)); err == nil {
		t.Fatal("expected error for dims=0")
	}
	if _, err := New(4, Dim1(1), Dim1(1)); err == nil {
		t.Fatal("expected error for dims=4")
	}
	if _, err := New(1, Dim1(1), Dim1(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRejectsZeroExtent(t *testing.T) {
	if _, err := New(3, Dim3(0, 1, 1), Dim3(1, 1, 1)); err == nil {
		t.Fatal("expected error for zero outer extent")
	}
	if _, err := New(3, Dim3(1, 1, 1), Dim3(1, 0, 1)); err == nil {
		t.Fatal("expected error for zero inner extent")
	}
}

func TestSingleLaunchGeometry(t *testing.T) {
	g, err := New(3, Dim3(1, 1, 1), Dim3(1, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Total() != 1 {
		t.Fatalf("expected a single work-item, got %d", g.Total())
	}
}

func TestGlobalAndTotal(t *testing.T) {
	g, err := New(1, Dim1(4), Dim1(32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Global(); got != (Dim{X: 128, Y: 1, Z: 1}) {
		t.Fatalf("Global() = %+v, want {128 1 1}", got)
	}
	if g.Total() != 128 {
		t.Fatalf("Total() = %d, want 128", g.Total())
	}
}
