package common

import (
	"math"
	"testing"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestTranslationScalingCompose(t *testing.T) {
	m := Translation(Vec3{1, 2, 3}).Mul(Scaling(Vec3{2, 3, 4}))

	want := Mat4{
		2, 0, 0, 0,
		0, 3, 0, 0,
		0, 0, 4, 0,
		1, 2, 3, 1,
	}
	if m != want {
		t.Fatalf("T*S = %v, want %v", m, want)
	}
}

func TestRotationYTurnsXTowardMinusZ(t *testing.T) {
	m := RotationY(math.Pi / 2)
	// Column 0 is the image of +X.
	if !near(m[0], 0) || !near(m[1], 0) || !near(m[2], -1) {
		t.Errorf("R*X = (%v, %v, %v), want (0, 0, -1)", m[0], m[1], m[2])
	}
}

func TestInverseUndoesTransform(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"identity", Identity()},
		{"translate rotate scale", Translation(Vec3{-1.5, 0.25, 4}).Mul(RotationY(1.1)).Mul(Scaling(Vec3{1, 2, 0.5}))},
		{"view", LookAt(Vec3{3, 2, 5}, Vec3{0, 0, 0}, Vec3{0, 1, 0})},
		{"projection", Perspective(1.0, 16.0/9.0, 0.1, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := tt.m.Inverse()
			if !ok {
				t.Fatal("matrix should be invertible")
			}
			got := tt.m.Mul(inv)
			id := Identity()
			for i := range id {
				if !near(got[i], id[i]) {
					t.Fatalf("m * inv(m) [%d] = %v, want %v", i, got[i], id[i])
				}
			}
		})
	}
}

func TestInverseSingular(t *testing.T) {
	if _, ok := Scaling(Vec3{0, 1, 1}).Inverse(); ok {
		t.Error("a zero-scale matrix must not invert")
	}
}

func TestTransposeAndDet3(t *testing.T) {
	m := Translation(Vec3{1, 2, 3})
	if tr := m.Transpose(); tr[3] != 1 || tr[7] != 2 || tr[11] != 3 || tr.Transpose() != m {
		t.Errorf("transpose = %v", tr)
	}
	if d := Scaling(Vec3{2, 3, 4}).Det3(); d != 24 {
		t.Errorf("det = %v, want 24", d)
	}
	if d := Scaling(Vec3{-1, 1, 1}).Det3(); d >= 0 {
		t.Errorf("a mirror must have a negative determinant, got %v", d)
	}
}

func TestLookAtMapsEyeToOrigin(t *testing.T) {
	eye := Vec3{3, 2, 5}
	v := LookAt(eye, Vec3{0, 0, 0}, Vec3{0, 1, 0})
	// v * (eye, 1) is the translation column plus the rotated eye.
	for r := range 3 {
		got := v[r]*eye[0] + v[4+r]*eye[1] + v[8+r]*eye[2] + v[12+r]
		if !near(got, 0) {
			t.Errorf("eye in view space [%d] = %v, want 0", r, got)
		}
	}
	// The target lies on the view's -Z axis.
	if z := v[14]; z >= 0 {
		t.Errorf("target depth = %v, want negative", z)
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("Normalize(0) = %v", got)
	}
}
