package messages

import (
	"sort"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// StateAction — действие внутри конверта State.
// Snapshot — снапшот стороны-автора на момент создания действия,
// используется для отбрасывания дубликатов при переотправке.
type StateAction struct {
	Snapshot uint64
	Action   entity.Action
	Payload  []byte
}

// StateDispatch — событие, у которого важны все промежуточные
// экземпляры (в отличие от Update, где новое значение заменяет старое).
type StateDispatch struct {
	Dispatch entity.Dispatch
	Snapshot uint64
	Payload  []byte
}

// State — конверт ненадёжного потока.
//
// В направлении сервер -> клиент Snapshot — текущий ServerSnapshot,
// LastSnapshot — последний полученный от клиента ClientSnapshot.
// В обратном направлении — зеркально.
type State struct {
	Snapshot     uint64
	LastSnapshot uint64
	Updates      map[entity.Update][]byte
	Actions      []StateAction
	Dispatches   []StateDispatch
}

// Encode сериализует конверт
func (s *State) Encode(b *pack.Buffer) {
	b.WriteUvarint(s.Snapshot)
	b.WriteUvarint(s.LastSnapshot)

	// Секции компонентов в порядке возрастания Update,
	// чтобы кодирование было детерминированным.
	updates := make([]entity.Update, 0, len(s.Updates))
	for u := range s.Updates {
		updates = append(updates, u)
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i] < updates[j] })

	b.WriteUvarint(uint64(len(updates)))
	for _, u := range updates {
		b.WriteUvarint(uint64(u))
		b.WriteBytes(s.Updates[u])
	}

	b.WriteUvarint(uint64(len(s.Actions)))
	for _, a := range s.Actions {
		b.WriteUvarint(a.Snapshot)
		b.WriteUvarint(uint64(a.Action))
		b.WriteBytes(a.Payload)
	}

	b.WriteUvarint(uint64(len(s.Dispatches)))
	for _, d := range s.Dispatches {
		b.WriteUvarint(uint64(d.Dispatch))
		b.WriteUvarint(d.Snapshot)
		b.WriteBytes(d.Payload)
	}
}

// Decode восстанавливает конверт. Срезы берутся поверх входного
// буфера без копирования.
func (s *State) Decode(r *pack.Reader) error {
	var err error

	if s.Snapshot, err = r.ReadUvarint(); err != nil {
		return err
	}
	if s.LastSnapshot, err = r.ReadUvarint(); err != nil {
		return err
	}

	count, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()) {
		return pack.ErrCorrupted
	}
	s.Updates = make(map[entity.Update][]byte, count)
	for i := uint64(0); i < count; i++ {
		u, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		data, err := r.ReadBytes()
		if err != nil {
			return err
		}
		s.Updates[entity.Update(u)] = data
	}

	count, err = r.ReadUvarint()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()) {
		return pack.ErrCorrupted
	}
	s.Actions = make([]StateAction, 0, count)
	for i := uint64(0); i < count; i++ {
		var a StateAction
		if a.Snapshot, err = r.ReadUvarint(); err != nil {
			return err
		}
		action, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		a.Action = entity.Action(action)
		if a.Payload, err = r.ReadBytes(); err != nil {
			return err
		}
		s.Actions = append(s.Actions, a)
	}

	count, err = r.ReadUvarint()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()) {
		return pack.ErrCorrupted
	}
	s.Dispatches = make([]StateDispatch, 0, count)
	for i := uint64(0); i < count; i++ {
		var d StateDispatch
		dispatch, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		d.Dispatch = entity.Dispatch(dispatch)
		if d.Snapshot, err = r.ReadUvarint(); err != nil {
			return err
		}
		if d.Payload, err = r.ReadBytes(); err != nil {
			return err
		}
		s.Dispatches = append(s.Dispatches, d)
	}

	return nil
}

// updateBuffer — буфер секции компонента внутри StatePacker
type updateBuffer struct {
	packed bool
	buf    pack.Buffer
}

// StatePacker накапливает секции компонентов для одного конверта State.
// Буферы переиспользуются между тиками, в конверт попадают только
// секции, затребованные через GetBuffer с момента последней сборки.
type StatePacker struct {
	buffers map[entity.Update]*updateBuffer
	out     pack.Buffer
}

// NewStatePacker создаёт пустой сборщик
func NewStatePacker() *StatePacker {
	return &StatePacker{
		buffers: make(map[entity.Update]*updateBuffer),
	}
}

// GetBuffer возвращает буфер секции компонента и помечает её к отправке
func (p *StatePacker) GetBuffer(update entity.Update) *pack.Buffer {
	ub, ok := p.buffers[update]
	if !ok {
		ub = &updateBuffer{}
		p.buffers[update] = ub
	}
	ub.packed = true
	return &ub.buf
}

// PackState собирает конверт из накопленных секций и сбрасывает их.
// Возвращаемый срез действителен до следующего вызова.
func (p *StatePacker) PackState(
	snapshot uint64,
	lastSnapshot uint64,
	actions []StateAction,
	dispatches []StateDispatch,
) []byte {
	state := State{
		Snapshot:     snapshot,
		LastSnapshot: lastSnapshot,
		Updates:      make(map[entity.Update][]byte),
		Actions:      actions,
		Dispatches:   dispatches,
	}

	for update, ub := range p.buffers {
		if ub.packed {
			state.Updates[update] = ub.buf.Bytes()
		}
	}

	p.out.Reset()
	state.Encode(&p.out)

	for _, ub := range p.buffers {
		ub.packed = false
		ub.buf.Reset()
	}

	return p.out.Bytes()
}

// ActionsPacker накапливает действия для отправки игроку.
// Записи переотправляются в каждом конверте, пока получатель не
// подтвердит снапшот не меньше снапшота записи; подтверждённые
// записи отсекаются через Trim.
type ActionsPacker struct {
	entries []StateAction
}

// NewActionsPacker создаёт пустой накопитель действий
func NewActionsPacker() *ActionsPacker {
	return &ActionsPacker{}
}

// Add добавляет действие, созданное на указанном снапшоте
func (p *ActionsPacker) Add(action entity.Action, snapshot uint64, payload []byte) {
	p.entries = append(p.entries, StateAction{
		Snapshot: snapshot,
		Action:   action,
		Payload:  payload,
	})
}

// Pending возвращает неподтверждённые действия
func (p *ActionsPacker) Pending() []StateAction {
	return p.entries
}

// Trim удаляет действия, подтверждённые снапшотом confirmed
func (p *ActionsPacker) Trim(confirmed uint64) {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.Snapshot > confirmed {
			kept = append(kept, e)
		}
	}
	p.entries = kept
}

// DispatchesPacker — то же для событий Dispatch
type DispatchesPacker struct {
	entries []StateDispatch
}

// NewDispatchesPacker создаёт пустой накопитель событий
func NewDispatchesPacker() *DispatchesPacker {
	return &DispatchesPacker{}
}

// Add добавляет событие, созданное на указанном снапшоте
func (p *DispatchesPacker) Add(dispatch entity.Dispatch, snapshot uint64, payload []byte) {
	p.entries = append(p.entries, StateDispatch{
		Dispatch: dispatch,
		Snapshot: snapshot,
		Payload:  payload,
	})
}

// Pending возвращает неподтверждённые события
func (p *DispatchesPacker) Pending() []StateDispatch {
	return p.entries
}

// Trim удаляет события, подтверждённые снапшотом confirmed
func (p *DispatchesPacker) Trim(confirmed uint64) {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.Snapshot > confirmed {
			kept = append(kept, e)
		}
	}
	p.entries = kept
}
