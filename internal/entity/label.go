package entity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LabelMap сопоставляет строковые метки плотным идентификаторам.
// Порядок меток в списке определяет значения идентификаторов.
type LabelMap[T ~uint32] struct {
	labels  []string
	byLabel map[string]T
}

// NewLabelMap строит карту из упорядоченного списка меток
func NewLabelMap[T ~uint32](labels []string) LabelMap[T] {
	byLabel := make(map[string]T, len(labels))
	for i, l := range labels {
		byLabel[l] = T(i)
	}
	return LabelMap[T]{labels: labels, byLabel: byLabel}
}

// Get возвращает идентификатор по метке
func (m LabelMap[T]) Get(label string) (T, bool) {
	v, ok := m.byLabel[label]
	return v, ok
}

// Label возвращает метку по идентификатору
func (m LabelMap[T]) Label(v T) (string, bool) {
	if int(v) >= len(m.labels) {
		return "", false
	}
	return m.labels[v], true
}

// Len возвращает количество меток
func (m LabelMap[T]) Len() int {
	return len(m.labels)
}

// Labels возвращает метки в порядке идентификаторов
func (m LabelMap[T]) Labels() []string {
	return m.labels
}

type labelList struct {
	List []string `yaml:"list"`
}

// LoadLabelMap читает список меток из YAML файла вида `list: [...]`
func LoadLabelMap[T ~uint32](path string) (LabelMap[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LabelMap[T]{}, fmt.Errorf("чтение списка меток %s: %w", path, err)
	}

	var list labelList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return LabelMap[T]{}, fmt.Errorf("разбор списка меток %s: %w", path, err)
	}

	return NewLabelMap[T](list.List), nil
}

// LabelLibrary — все карты меток, загружаемые при старте сервера
type LabelLibrary struct {
	BlockClasses LabelMap[BlockClass]
	ActorClasses LabelMap[ActorClass]
	ActorModels  LabelMap[ActorModel]
	Effects      LabelMap[Effect]
	Actions      LabelMap[Action]
	Dispatches   LabelMap[Dispatch]
	Updates      LabelMap[Update]
	Scripts      LabelMap[Script]
	Dimensions   LabelMap[DimensionKind]
}

// DimensionKind — вид измерения мира
type DimensionKind uint32
