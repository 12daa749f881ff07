package system

import (
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type blockAlterData struct {
	Status *chunkcmp.StatusComponent `world:"read"`
	Blocks *block.Classes            `world:"write"`
}

// BlockAlter применяет прямой запрос клиента на изменение блока.
// Запросы в неактивные чанки и некорректные индексы отбрасываются.
func BlockAlter(w *world.World, msg *messages.AlterBlock) {
	d, release := world.GetData[blockAlterData](w)
	defer release()

	if int(msg.Block) >= entity.BlocksInChunk() {
		return
	}
	if status, ok := d.Status.Get(msg.Chunk); !ok || status != chunkcmp.StatusActive {
		return
	}

	setter, ok := d.Blocks.GetSetter(msg.Chunk)
	if !ok {
		return
	}
	setter.Set(msg.Block, msg.BlockClass)
}
