package entity

// Actor — плотный целочисленный идентификатор подвижной сущности
// (игрок, NPC, снаряд). Идентификаторы переиспользуются через free-list
// со штампом снапшота удаления.
type Actor uint32

// Player — идентификатор учетной записи игрока (ключ в базе)
type Player uint64

type freeActor struct {
	removedAt ServerSnapshot
	id        Actor
}

// ActorRegistry выдает и переиспользует идентификаторы акторов.
// Переиспользование откладывается на MaxSnapshotDiff снапшотов,
// чтобы устаревшие ссылки в истории изменений не указывали
// на нового актора.
type ActorRegistry struct {
	nextMaxID Actor
	freeIDs   []freeActor
}

// NewActorRegistry создает новый реестр акторов
func NewActorRegistry() *ActorRegistry {
	return &ActorRegistry{}
}

// Add выдает идентификатор актора для текущего снапшота
func (r *ActorRegistry) Add(snapshot ServerSnapshot) Actor {
	if len(r.freeIDs) > 0 {
		free := r.freeIDs[0]
		if snapshot < free.removedAt {
			panic("actor registry: removal happened after adding")
		}

		// Переиспользуем только когда все удаления гарантированно
		// разошлись по клиентам
		if uint64(snapshot-free.removedAt) > MaxSnapshotDiff {
			r.freeIDs = r.freeIDs[1:]
			return free.id
		}
	}

	id := r.nextMaxID
	r.nextMaxID++
	return id
}

// Remove возвращает идентификатор в free-list со штампом снапшота
func (r *ActorRegistry) Remove(actor Actor, snapshot ServerSnapshot) {
	r.freeIDs = append(r.freeIDs, freeActor{removedAt: snapshot, id: actor})
}
