package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type chunkActivationData struct {
	Activation *actorcmp.ChunkActivationComponent `world:"read"`
	Position   *actorcmp.Position                 `world:"read"`
	Status     *chunkcmp.StatusComponent          `world:"write"`
	Blocks     *block.Classes                     `world:"write"`
	Cache      *chunkcmp.CacheComponent           `world:"write"`
}

// ChunkActivation пересчитывает целевой набор активных чанков —
// объединение радиусов активации всех актёров с компонентом
// активации. Новые чанки получают статус Loading и передаются
// в schedule для асинхронной загрузки или генерации. Чанки вне
// целевого набора выселяются; статус Loading не выселяется, чтобы
// не потерять результат уже запущенной загрузки.
func ChunkActivation(w *world.World, schedule func(entity.Chunk)) {
	d, release := world.GetData[chunkActivationData](w)
	defer release()

	target := make(map[entity.Chunk]struct{})

	d.Activation.Each(func(a entity.Actor, activation actorcmp.ChunkActivation) bool {
		position, ok := d.Position.Get(a)
		if !ok {
			return true
		}
		for _, chunk := range position.Chunk.Radius(activation.Radius).Chunks() {
			target[chunk] = struct{}{}
		}
		return true
	})

	var fresh []entity.Chunk
	for chunk := range target {
		if _, ok := d.Status.Get(chunk); !ok {
			d.Status.Insert(chunk, chunkcmp.StatusLoading)
			fresh = append(fresh, chunk)
		}
	}

	var evict []entity.Chunk
	d.Status.Each(func(chunk entity.Chunk, status chunkcmp.Status) bool {
		if _, keep := target[chunk]; keep || status == chunkcmp.StatusLoading {
			return true
		}
		evict = append(evict, chunk)
		return true
	})
	for _, chunk := range evict {
		d.Status.Remove(chunk)
		d.Blocks.RemoveChunk(chunk)
		d.Cache.Remove(chunk)
	}

	for _, chunk := range fresh {
		schedule(chunk)
	}
}
