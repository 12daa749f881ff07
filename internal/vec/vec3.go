package vec

import "math"

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int32
	Y int32
	Z int32
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

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Vec3F представляет трехмерный вектор с плавающими координатами
type Vec3F struct {
	X float32
	Y float32
	Z float32
}

// Add складывает два вектора
func (v Vec3F) Add(other Vec3F) Vec3F {
	return Vec3F{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает другой вектор
func (v Vec3F) Sub(other Vec3F) Vec3F {
	return Vec3F{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Mul умножает вектор на скаляр
func (v Vec3F) Mul(s float32) Vec3F {
	return Vec3F{
		X: v.X * s,
		Y: v.Y * s,
		Z: v.Z * s,
	}
}

// Length возвращает длину вектора
func (v Vec3F) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Normalize возвращает нормализованный вектор.
// Нулевой вектор возвращается без изменений.
func (v Vec3F) Normalize() Vec3F {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

// Axis возвращает компоненту вектора по индексу оси (0=X, 1=Y, 2=Z)
func (v Vec3F) Axis(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// SetAxis устанавливает компоненту вектора по индексу оси
func (v *Vec3F) SetAxis(i int, val float32) {
	switch i {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
}

// ToArray возвращает компоненты вектора как массив
func (v Vec3F) ToArray() [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

// FromArray создает вектор из массива компонент
func FromArray(a [3]float32) Vec3F {
	return Vec3F{X: a[0], Y: a[1], Z: a[2]}
}

// RoundDown округляет значение вниз до целого (floor, работает и для отрицательных)
func RoundDown(f float32) int32 {
	return int32(math.Floor(float64(f)))
}
