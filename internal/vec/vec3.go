package vec

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Splat возвращает вектор с одинаковыми координатами
func Splat(v int) Vec3 {
	return Vec3{X: v, Y: v, Z: v}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает другой вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Scale умножает все координаты на k
func (v Vec3) Scale(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// InCube проверяет, лежит ли точка в кубе [origin, origin+side)
func (v Vec3) InCube(origin Vec3, side int) bool {
	return v.X >= origin.X && v.X < origin.X+side &&
		v.Y >= origin.Y && v.Y < origin.Y+side &&
		v.Z >= origin.Z && v.Z < origin.Z+side
}

// Array возвращает координаты в виде массива [x, y, z]
func (v Vec3) Array() [3]int {
	return [3]int{v.X, v.Y, v.Z}
}

// FromArray создает Vec3 из массива [x, y, z]
func FromArray(a [3]int) Vec3 {
	return Vec3{X: a[0], Y: a[1], Z: a[2]}
}
