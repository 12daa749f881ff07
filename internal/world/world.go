// Package world реализует контейнер ресурсов сервера с
// контролем заимствований на этапе выполнения.
//
// Ресурсы регистрируются по типу. Системы описывают свои
// потребности структурой, поля которой являются указателями
// на ресурсы с тегами `world:"read"` или `world:"write"`.
// План доступа компилируется один раз через рефлексию, после
// чего выдача происходит через счётчики заимствований:
// несколько читателей совместимы, писатель эксклюзивен.
// Конфликт означает ошибку архитектуры и вызывает панику.
package world

import (
	"fmt"
	"reflect"
	"sync"
)

// accessMode — режим доступа к ресурсу
type accessMode uint8

const (
	modeRead accessMode = iota
	modeWrite
)

// resource — зарегистрированный ресурс и его счётчики заимствований
type resource struct {
	value   reflect.Value // указатель на ресурс
	readers int
	writer  bool
}

// World — контейнер ресурсов сервера
type World struct {
	mu        sync.Mutex
	resources map[reflect.Type]*resource
	plans     map[reflect.Type]*plan
}

// plan — скомпилированный план доступа для типа-набора
type plan struct {
	fields []planField
}

type planField struct {
	index int
	mode  accessMode
	res   *resource
}

// New создаёт пустой контейнер
func New() *World {
	return &World{
		resources: make(map[reflect.Type]*resource),
		plans:     make(map[reflect.Type]*plan),
	}
}

// AddResource регистрирует ресурс. Аргумент должен быть указателем.
// Повторная регистрация того же типа — паника.
func (w *World) AddResource(res interface{}) {
	v := reflect.ValueOf(res)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		panic(fmt.Sprintf("world: ресурс должен быть ненулевым указателем, получен %T", res))
	}

	t := v.Type().Elem()

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.resources[t]; ok {
		panic(fmt.Sprintf("world: ресурс %s уже зарегистрирован", t))
	}
	w.resources[t] = &resource{value: v}
}

// compile строит план доступа для типа-набора S.
// Каждое поле S — указатель на ресурс с тегом world:"read" или world:"write".
func (w *World) compile(setType reflect.Type) *plan {
	if p, ok := w.plans[setType]; ok {
		return p
	}

	if setType.Kind() != reflect.Struct {
		panic(fmt.Sprintf("world: набор доступа %s должен быть структурой", setType))
	}

	p := &plan{}
	seen := make(map[reflect.Type]struct{}, setType.NumField())
	for i := 0; i < setType.NumField(); i++ {
		field := setType.Field(i)

		tag, ok := field.Tag.Lookup("world")
		if !ok {
			panic(fmt.Sprintf("world: поле %s.%s без тега world", setType, field.Name))
		}

		var mode accessMode
		switch tag {
		case "read":
			mode = modeRead
		case "write":
			mode = modeWrite
		default:
			panic(fmt.Sprintf("world: поле %s.%s: неизвестный режим %q", setType, field.Name, tag))
		}

		if field.Type.Kind() != reflect.Ptr {
			panic(fmt.Sprintf("world: поле %s.%s должно быть указателем на ресурс", setType, field.Name))
		}

		// Повтор ресурса в одном наборе обошёл бы проверку
		// конфликтов: счётчики сверяются до захвата набора
		if _, dup := seen[field.Type.Elem()]; dup {
			panic(fmt.Sprintf("world: ресурс %s встречается в наборе %s дважды",
				field.Type.Elem(), setType))
		}
		seen[field.Type.Elem()] = struct{}{}

		res, ok := w.resources[field.Type.Elem()]
		if !ok {
			panic(fmt.Sprintf("world: ресурс %s не зарегистрирован", field.Type.Elem()))
		}

		p.fields = append(p.fields, planField{index: i, mode: mode, res: res})
	}

	w.plans[setType] = p
	return p
}

// GetData выдаёт набор ресурсов S согласно тегам полей.
// Возвращает заполненный набор и функцию освобождения.
// Конфликт заимствований (writer при активных читателях,
// любой доступ при активном writer) — паника.
func GetData[S any](w *World) (*S, func()) {
	var set S
	setType := reflect.TypeOf(set)

	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.compile(setType)

	// Сначала проверяем что весь набор выдаваем без конфликтов,
	// чтобы не оставить частично захваченные ресурсы.
	for _, f := range p.fields {
		if f.res.writer {
			panic(fmt.Sprintf("world: конфликт заимствования %s: ресурс уже взят на запись",
				setType.Field(f.index).Type.Elem()))
		}
		if f.mode == modeWrite && f.res.readers > 0 {
			panic(fmt.Sprintf("world: конфликт заимствования %s: ресурс уже взят на чтение",
				setType.Field(f.index).Type.Elem()))
		}
	}

	setValue := reflect.ValueOf(&set).Elem()
	for _, f := range p.fields {
		if f.mode == modeWrite {
			f.res.writer = true
		} else {
			f.res.readers++
		}
		setValue.Field(f.index).Set(f.res.value)
	}

	released := false
	release := func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		if released {
			return
		}
		released = true

		for _, f := range p.fields {
			if f.mode == modeWrite {
				f.res.writer = false
			} else {
				f.res.readers--
			}
		}
	}

	return &set, release
}
