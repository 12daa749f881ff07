package entity

// ServerSnapshot — монотонный счетчик тиков сервера.
// Нулевое значение означает "клиент еще ничего не подтвердил".
type ServerSnapshot uint64

// ClientSnapshot — монотонный счетчик состояния клиента
type ClientSnapshot uint64

// Next возвращает следующий снапшот
func (s ServerSnapshot) Next() ServerSnapshot {
	return s + 1
}

// DefaultMaxSnapshotDiff — окно истории изменений по умолчанию
// (~15 секунд при тике в 50 мс)
const DefaultMaxSnapshotDiff = 300

// MaxSnapshotDiff — действующее окно истории. Устанавливается из
// конфигурации один раз при старте, до создания компонентов.
var MaxSnapshotDiff uint64 = DefaultMaxSnapshotDiff
