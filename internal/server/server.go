// Package server содержит серверный цикл (тик симуляции) и
// клиентский цикл (сессии игроков).
//
// Всё состояние мира принадлежит серверному циклу: сессии и загрузчик
// чанков общаются с ним только событиями через канал. Надёжный поток
// сессии идёт по KCP на listen_port, ненадёжные State-конверты — по
// UDP датаграммам на listen_port+1, привязанным к сессии её
// идентификатором.
package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"path/filepath"
	"sync"

	"github.com/voxbrix/voxbrix-server/internal/component/action"
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/actorclass"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	"github.com/voxbrix/voxbrix-server/internal/component/blockclass"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/component/effect"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/config"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/gen"
	"github.com/voxbrix/voxbrix-server/internal/logging"
	"github.com/voxbrix/voxbrix-server/internal/metrics"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/script"
	"github.com/voxbrix/voxbrix-server/internal/storage"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

const (
	eventQueueSize    = 1024
	loadQueueSize     = 256
	clientTxQueueSize = 128
)

// Server — сервер мира: контейнер ресурсов, цикл тика и сеть
type Server struct {
	cfg *config.Config

	world     *world.World
	scripts   *script.Registry
	store     *storage.Store
	generator *gen.Generator
	lib       *entity.LabelLibrary

	identity ed25519.PrivateKey

	events    chan loopEvent
	loadQueue chan entity.Chunk

	sessions  *sessionTable
	datagrams *net.UDPConn

	logger *logging.Logger
	wg     sync.WaitGroup
}

// New собирает сервер: метки и дескрипторы из каталога ассетов,
// хранилище, генератор, реестр скриптов и контейнер ресурсов мира.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	entity.BlocksInChunkEdge = cfg.World.GetBlocksInChunkEdge()
	entity.MaxSnapshotDiff = cfg.World.GetMaxSnapshotDiff()

	assets := cfg.Storage.GetAssetsPath()

	lib, err := loadLabelLibrary(assets)
	if err != nil {
		return nil, err
	}

	updates, err := resolveUpdates(lib)
	if err != nil {
		return nil, err
	}

	actionHandlers, err := action.LoadHandlers(filepath.Join(assets, "action_handlers.yaml"), lib)
	if err != nil {
		return nil, err
	}
	effectHandlers, err := effect.LoadSnapshotHandlers(filepath.Join(assets, "effect_handlers.yaml"), lib)
	if err != nil {
		return nil, err
	}
	blockCollision, err := blockclass.LoadCollision(filepath.Join(assets, "block_collision.yaml"), lib)
	if err != nil {
		return nil, err
	}
	actorCollision, err := actorclass.LoadCollision(filepath.Join(assets, "actor_collision.yaml"), lib)
	if err != nil {
		return nil, err
	}
	models, err := actorclass.LoadModel(filepath.Join(assets, "models.yaml"), lib, updates.model)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	generator, err := gen.New(cfg.World.GenerationSeed, lib)
	if err != nil {
		store.Close()
		return nil, err
	}

	scripts, err := script.NewRegistry(
		ctx,
		filepath.Join(assets, "scripts"),
		lib,
		cfg.Script.GetFuelPerCall(),
		cfg.Script.GetMemoryLimitBytes(),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	_, identity, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("генерация ключа сервера: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		world:     world.New(),
		scripts:   scripts,
		store:     store,
		generator: generator,
		lib:       lib,
		identity:  identity,
		events:    make(chan loopEvent, eventQueueSize),
		loadQueue: make(chan entity.Chunk, loadQueueSize),
		sessions:  newSessionTable(),
		logger:    logging.NewLogger("server"),
	}

	s.registerResources(lib, updates, actionHandlers, effectHandlers, blockCollision, actorCollision, models)

	s.logger.Info("🔑 публичный ключ сервера: %x", identity.Public().(ed25519.PublicKey))
	return s, nil
}

// updateHandles — идентификаторы секций State-конверта
type updateHandles struct {
	position    entity.Update
	velocity    entity.Update
	orientation entity.Update
	class       entity.Update
	model       entity.Update
	effect      entity.Update
}

func resolveUpdates(lib *entity.LabelLibrary) (updateHandles, error) {
	var h updateHandles
	for _, req := range []struct {
		label string
		dst   *entity.Update
	}{
		{"position", &h.position},
		{"velocity", &h.velocity},
		{"orientation", &h.orientation},
		{"class", &h.class},
		{"model", &h.model},
		{"effect", &h.effect},
	} {
		u, ok := lib.Updates.Get(req.label)
		if !ok {
			return h, fmt.Errorf("секция %q не определена в списке updates", req.label)
		}
		*req.dst = u
	}
	return h, nil
}

func loadLabelLibrary(assets string) (*entity.LabelLibrary, error) {
	lib := &entity.LabelLibrary{}

	var err error
	if lib.BlockClasses, err = entity.LoadLabelMap[entity.BlockClass](filepath.Join(assets, "block_classes.yaml")); err != nil {
		return nil, err
	}
	if lib.ActorClasses, err = entity.LoadLabelMap[entity.ActorClass](filepath.Join(assets, "actor_classes.yaml")); err != nil {
		return nil, err
	}
	if lib.ActorModels, err = entity.LoadLabelMap[entity.ActorModel](filepath.Join(assets, "actor_models.yaml")); err != nil {
		return nil, err
	}
	if lib.Effects, err = entity.LoadLabelMap[entity.Effect](filepath.Join(assets, "effects.yaml")); err != nil {
		return nil, err
	}
	if lib.Actions, err = entity.LoadLabelMap[entity.Action](filepath.Join(assets, "actions.yaml")); err != nil {
		return nil, err
	}
	if lib.Dispatches, err = entity.LoadLabelMap[entity.Dispatch](filepath.Join(assets, "dispatches.yaml")); err != nil {
		return nil, err
	}
	if lib.Updates, err = entity.LoadLabelMap[entity.Update](filepath.Join(assets, "updates.yaml")); err != nil {
		return nil, err
	}
	if lib.Scripts, err = entity.LoadLabelMap[entity.Script](filepath.Join(assets, "scripts.yaml")); err != nil {
		return nil, err
	}
	if lib.Dimensions, err = entity.LoadLabelMap[entity.DimensionKind](filepath.Join(assets, "dimensions.yaml")); err != nil {
		return nil, err
	}

	return lib, nil
}

func (s *Server) registerResources(
	lib *entity.LabelLibrary,
	updates updateHandles,
	actionHandlers *action.Handlers,
	effectHandlers *effect.SnapshotHandlers,
	blockCollision *blockclass.Collision,
	actorCollision *actorclass.Collision,
	models *actorclass.Model,
) {
	w := s.world

	w.AddResource(lib)
	w.AddResource(&resource.Snapshot{})
	w.AddResource(resource.NewProcessTimer())
	w.AddResource(&resource.ActorRemovalQueue{})
	w.AddResource(&resource.PlayerRemovalQueue{})
	w.AddResource(&resource.PositionChanges{})
	w.AddResource(&resource.ProjectileActorCollisions{})

	w.AddResource(entity.NewActorRegistry())
	w.AddResource(actorcmp.NewClass(updates.class))
	w.AddResource(actorcmp.NewPosition(updates.position))
	w.AddResource(actorcmp.NewVelocityComponent(updates.velocity))
	w.AddResource(actorcmp.NewOrientationComponent(updates.orientation))
	w.AddResource(actorcmp.NewEffects(updates.effect))
	w.AddResource(actorcmp.NewPlayerHandle())
	w.AddResource(actorcmp.NewChunkActivationComponent())
	w.AddResource(actorcmp.NewProjectileComponent())

	w.AddResource(actionHandlers)
	w.AddResource(effectHandlers)
	w.AddResource(blockCollision)
	w.AddResource(actorCollision)
	w.AddResource(models)

	w.AddResource(block.NewClasses())
	w.AddResource(chunkcmp.NewStatus())
	w.AddResource(chunkcmp.NewCache())

	w.AddResource(player.NewClient())
	w.AddResource(player.NewActor())
	w.AddResource(player.NewChunkView())
	w.AddResource(player.NewChunkUpdate())
	w.AddResource(player.NewStatePacker())
	w.AddResource(player.NewActionsPacker())
	w.AddResource(player.NewDispatchesPacker())
}

// Run запускает сервер и блокируется до отмены контекста
func (s *Server) Run(ctx context.Context) error {
	worker := storage.NewWorker(ctx, s.store)
	s.world.AddResource(worker)

	listenPort := s.cfg.Server.GetListenPort()

	listener, err := listenKCP(listenPort)
	if err != nil {
		return err
	}

	datagrams, err := net.ListenUDP("udp", &net.UDPAddr{Port: listenPort + 1})
	if err != nil {
		listener.Close()
		return fmt.Errorf("открытие сокета датаграмм: %w", err)
	}
	s.datagrams = datagrams

	s.logger.Info("🚪 сессии на порту %d, датаграммы на порту %d", listenPort, listenPort+1)

	metrics.Serve(s.cfg.Server.GetMetricsPort())

	s.wg.Add(3)
	go s.acceptSessions(ctx, listener)
	go s.receiveDatagrams(ctx)
	go s.loadChunks(ctx)

	s.runLoop(ctx)

	listener.Close()
	datagrams.Close()
	s.wg.Wait()
	worker.Wait()

	s.scripts.Close(context.Background())
	if err := s.store.Close(); err != nil {
		s.logger.Error("закрытие хранилища: %v", err)
	}

	s.logger.Info("👋 сервер остановлен")
	return nil
}
