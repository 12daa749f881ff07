package vec

// Quat представляет единичный кватернион ориентации
type Quat struct {
	X float32
	Y float32
	Z float32
	W float32
}

// IdentityQuat возвращает нейтральный кватернион
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// Forward возвращает направление взгляда для данной ориентации.
// Базовое направление — ось +Y (как у актора, смотрящего "вперед").
func (q Quat) Forward() Vec3F {
	// Поворот вектора (0,1,0) кватернионом q
	return q.Rotate(Vec3F{Y: 1})
}

// Rotate поворачивает вектор кватернионом
func (q Quat) Rotate(v Vec3F) Vec3F {
	// t = 2 * cross(q.xyz, v)
	tx := 2 * (q.Y*v.Z - q.Z*v.Y)
	ty := 2 * (q.Z*v.X - q.X*v.Z)
	tz := 2 * (q.X*v.Y - q.Y*v.X)

	// v' = v + w*t + cross(q.xyz, t)
	return Vec3F{
		X: v.X + q.W*tx + (q.Y*tz - q.Z*ty),
		Y: v.Y + q.W*ty + (q.Z*tx - q.X*tz),
		Z: v.Z + q.W*tz + (q.X*ty - q.Y*tx),
	}
}
