package vec

import "testing"

func TestVec3InCube(t *testing.T) {
	origin := Vec3{X: -4, Y: 0, Z: 8}

	inside := []Vec3{{-4, 0, 8}, {3, 7, 15}, {0, 3, 10}}
	for _, p := range inside {
		if !p.InCube(origin, 8) {
			t.Errorf("Точка %v должна лежать в кубе", p)
		}
	}

	outside := []Vec3{{4, 0, 8}, {-5, 0, 8}, {0, 8, 8}, {0, 0, 16}, {0, -1, 8}}
	for _, p := range outside {
		if p.InCube(origin, 8) {
			t.Errorf("Точка %v не должна лежать в кубе", p)
		}
	}
}

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Splat(2)

	if got := a.Add(b); !got.Equals(Vec3{3, 4, 5}) {
		t.Errorf("Add: получено %v", got)
	}
	if got := a.Sub(b); !got.Equals(Vec3{-1, 0, 1}) {
		t.Errorf("Sub: получено %v", got)
	}
	if got := a.Scale(3); !got.Equals(Vec3{3, 6, 9}) {
		t.Errorf("Scale: получено %v", got)
	}
	if got := FromArray(a.Array()); !got.Equals(a) {
		t.Errorf("Array/FromArray: получено %v", got)
	}
}
