package system

import (
	"fmt"

	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	"github.com/voxbrix/voxbrix-server/internal/component/blockclass"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/script"
	"github.com/voxbrix/voxbrix-server/internal/vec"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type scriptTargetData struct {
	Blocks    *block.Classes        `world:"read"`
	Collision *blockclass.Collision `world:"read"`
}

type scriptAlterData struct {
	Blocks *block.Classes `world:"write"`
}

// ScriptAccess реализует хост-вызовы скриптов поверх мира.
// Каждый вызов берёт заимствования заново и отпускает их до
// возврата в гостевой код: скрипт запускается системой уже после
// освобождения её собственных заимствований.
type ScriptAccess struct {
	w   *world.World
	lib *entity.LabelLibrary
}

// NewScriptAccess создаёт доступ скриптов к миру
func NewScriptAccess(w *world.World) *ScriptAccess {
	d, release := world.GetData[scriptLabelData](w)
	lib := d.Labels
	release()
	return &ScriptAccess{w: w, lib: lib}
}

type scriptLabelData struct {
	Labels *entity.LabelLibrary `world:"read"`
}

// GetTargetBlock разрешает луч в ближайший твёрдый блок
func (s *ScriptAccess) GetTargetBlock(request []byte) []byte {
	var req script.TargetBlockRequest
	if err := pack.FromBytes(request, &req); err != nil {
		return nil
	}

	d, release := world.GetData[scriptTargetData](s.w)
	defer release()

	chunk, blk, side, ok := TargetBlock(
		actorcmp.GlobalPosition{Chunk: req.Chunk, Offset: vec.FromArray(req.Offset)},
		vec.FromArray(req.Direction),
		req.MaxDistance,
		func(c entity.Chunk, b entity.Block) bool {
			chunkBlocks, ok := d.Blocks.GetChunk(c)
			if !ok {
				return false
			}
			kind, ok := d.Collision.Get(chunkBlocks.Get(b))
			return ok && kind == blockclass.CollisionSolidCube
		},
	)
	if !ok {
		return nil
	}

	resp := script.TargetBlockResponse{Chunk: chunk, Block: blk, Side: side}
	return pack.ToBytes(&resp)
}

// SetClassOfBlock меняет класс блока; изменение попадает в журнал
// изменённых чанков и разойдётся клиентам в BlockSync
func (s *ScriptAccess) SetClassOfBlock(request []byte) error {
	var req script.SetBlockRequest
	if err := pack.FromBytes(request, &req); err != nil {
		return fmt.Errorf("запрос смены блока: %w", err)
	}

	d, release := world.GetData[scriptAlterData](s.w)
	defer release()

	if int(req.Block) >= entity.BlocksInChunk() {
		return fmt.Errorf("индекс блока %d вне чанка", req.Block)
	}

	setter, ok := d.Blocks.GetSetter(req.Chunk)
	if !ok {
		return fmt.Errorf("чанк %v не активен", req.Chunk)
	}
	setter.Set(req.Block, req.BlockClass)
	return nil
}

type scriptBroadcastData struct {
	Snapshot       *resource.Snapshot             `world:"read"`
	Position       *actorcmp.Position             `world:"read"`
	PlayerActor    *player.ActorComponent         `world:"read"`
	ChunkView      *player.ChunkViewComponent     `world:"read"`
	ActionsPackers *player.ActionsPackerComponent `world:"write"`
}

// BroadcastActionLocal добавляет действие в накопители всех игроков,
// в чей обзор попадает чанк актёра-источника. Записи уходят в каждом
// конверте State, пока получатель не подтвердит их снапшот.
func (s *ScriptAccess) BroadcastActionLocal(request []byte) error {
	var req script.BroadcastActionRequest
	if err := pack.FromBytes(request, &req); err != nil {
		return fmt.Errorf("запрос рассылки действия: %w", err)
	}

	d, release := world.GetData[scriptBroadcastData](s.w)
	defer release()

	source, ok := d.Position.Get(req.SourceActor)
	if !ok {
		return fmt.Errorf("актёр-источник %d без положения", req.SourceActor)
	}

	snapshot := uint64(d.Snapshot.Current)

	var buf pack.Buffer
	buf.WriteUvarint(uint64(req.SourceActor))
	buf.WriteBytes(req.Payload)
	payload := make([]byte, len(buf.Bytes()))
	copy(payload, buf.Bytes())

	d.PlayerActor.Each(func(p entity.Player, a entity.Actor) bool {
		position, ok := d.Position.Get(a)
		if !ok {
			return true
		}
		view, ok := d.ChunkView.Get(p)
		if !ok {
			return true
		}
		if !position.Chunk.Radius(view.Radius).IsWithin(source.Chunk) {
			return true
		}
		if packer, ok := d.ActionsPackers.Get(p); ok {
			packer.Add(req.Action, snapshot, payload)
		}
		return true
	})

	return nil
}

// GetBlockClassByLabel возвращает класс блока по метке
func (s *ScriptAccess) GetBlockClassByLabel(label string) (entity.BlockClass, bool) {
	return s.lib.BlockClasses.Get(label)
}
