package server

import (
	"context"
	"errors"
	"time"

	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/metrics"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/storage"
	"github.com/voxbrix/voxbrix-server/internal/system"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type eventKind uint8

const (
	// Конверт State из ненадёжного потока
	eventPlayerState eventKind = iota
	// Тегированное сообщение надёжного потока
	eventPlayerMessage
	eventAddPlayer
	eventRemovePlayer
	eventChunkLoaded
)

type addPlayerResult struct {
	actor entity.Actor
	err   error
}

type addPlayerRequest struct {
	data system.PlayerAddData
	done chan addPlayerResult
}

// loopEvent — событие серверного цикла. Заполнены только поля вида.
type loopEvent struct {
	kind   eventKind
	player entity.Player
	data   []byte

	add *addPlayerRequest

	chunk   entity.Chunk
	classes []entity.BlockClass
	encoded []byte
}

type timerData struct {
	Timer *resource.ProcessTimer `world:"write"`
}

type snapshotData struct {
	Snapshot *resource.Snapshot        `world:"write"`
	Clients  *player.ClientComponent   `world:"read"`
	Status   *chunkcmp.StatusComponent `world:"read"`
}

type removalData struct {
	PlayerRemoval *resource.PlayerRemovalQueue `world:"write"`
}

// runLoop — серверный цикл: единственный владелец мира. События
// сессий и загрузчика применяются по мере поступления, тик — по
// таймеру process_interval.
func (s *Server) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Server.ProcessInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.process(ctx)
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, ev loopEvent) {
	switch ev.kind {
	case eventPlayerState:
		var state messages.State
		if err := pack.FromBytes(ev.data, &state); err != nil {
			s.logger.Debug("повреждённый конверт State игрока %d: %v", ev.player, err)
			return
		}
		// Действия фильтруются по снапшоту клиента, который
		// продвигает PlayerUpdates, поэтому порядок фиксирован
		system.PlayerActions(s.world, ctx, s.scripts, ev.player, &state)
		system.PlayerUpdates(s.world, ev.player, &state)

	case eventPlayerMessage:
		r := pack.NewReader(ev.data)
		tag, err := r.ReadU8()
		if err != nil {
			return
		}
		switch tag {
		case messages.ServerAcceptAlterBlock:
			var msg messages.AlterBlock
			if err := msg.Decode(r); err != nil {
				s.logger.Debug("повреждённый AlterBlock игрока %d: %v", ev.player, err)
				return
			}
			system.BlockAlter(s.world, &msg)
		default:
			s.logger.Debug("неизвестный тег %d от игрока %d", tag, ev.player)
		}

	case eventAddPlayer:
		actor, err := system.PlayerAdd(s.world, ev.add.data)
		ev.add.done <- addPlayerResult{actor: actor, err: err}

	case eventRemovePlayer:
		d, release := world.GetData[removalData](s.world)
		d.PlayerRemoval.Enqueue(ev.player)
		release()

	case eventChunkLoaded:
		system.ChunkAdd(s.world, ev.chunk, ev.classes, ev.encoded)
	}
}

// process выполняет один тик симуляции
func (s *Server) process(ctx context.Context) {
	started := time.Now()

	func() {
		d, release := world.GetData[timerData](s.world)
		defer release()
		d.Timer.RecordNext()
	}()

	system.ChunkSending(s.world)
	system.BlockSync(s.world)
	system.Position(s.world)
	system.ProjectileHitboxCollision(s.world)
	system.ProjectileBlockHandling(s.world)
	system.ProjectileActorHandling(s.world)
	system.ActorSync(s.world)
	system.ChunkActivation(s.world, s.scheduleChunkLoad)
	system.ActorPruning(s.world)
	system.EffectSnapshot(s.world, ctx, s.scripts)

	for _, p := range system.EntityRemoval(s.world) {
		s.sessions.close(p)
	}

	func() {
		d, release := world.GetData[snapshotData](s.world)
		defer release()
		d.Snapshot.Current = d.Snapshot.Current.Next()
		metrics.ConnectedPlayers.Set(float64(d.Clients.Len()))
		metrics.ActiveChunks.Set(float64(d.Status.Len()))
	}()

	metrics.TickDuration.Observe(time.Since(started).Seconds())
}

// scheduleChunkLoad ставит чанк в очередь загрузчика. Переполнение
// очереди не теряет чанк: активация запланирует его снова, пока
// статус остаётся Loading.
func (s *Server) scheduleChunkLoad(chunk entity.Chunk) {
	select {
	case s.loadQueue <- chunk:
	default:
		s.logger.Warn("⚠️ очередь загрузки чанков переполнена, чанк %v отложен", chunk)
	}
}

// loadChunks — загрузчик чанков: читает сохранённые блоки, при
// отсутствии генерирует и сохраняет. Результат возвращается циклу
// событием вместе с заранее закодированным сообщением ChunkData.
func (s *Server) loadChunks(ctx context.Context) {
	defer s.wg.Done()

	for {
		var chunk entity.Chunk
		select {
		case <-ctx.Done():
			return
		case chunk = <-s.loadQueue:
		}

		classes, err := s.store.GetChunkBlocks(chunk)
		switch {
		case err == nil:
			metrics.ChunkLoads.WithLabelValues("storage").Inc()
		case errors.Is(err, storage.ErrNotFound):
			classes = s.generator.Generate(chunk)
			if err := s.store.PutChunkBlocks(chunk, classes); err != nil {
				s.logger.Error("сохранение сгенерированного чанка %v: %v", chunk, err)
			}
			metrics.ChunkLoads.WithLabelValues("generated").Inc()
		default:
			s.logger.Error("загрузка чанка %v: %v", chunk, err)
			continue
		}

		encoded := messages.EncodeTagged(messages.ClientAcceptChunkData, &messages.ChunkData{
			Chunk:        chunk,
			BlockClasses: messages.EncodeBlockClasses(classes),
		})

		select {
		case <-ctx.Done():
			return
		case s.events <- loopEvent{
			kind:    eventChunkLoaded,
			chunk:   chunk,
			classes: classes,
			encoded: encoded,
		}:
		}
	}
}
