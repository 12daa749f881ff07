// Package script реализует песочницу гостевых модулей WebAssembly.
//
// Модули компилируются один раз при старте по карте меток скриптов.
// Экземпляры создаются лениво и кэшируются; паника гостя или
// исчерпание бюджета вызова уничтожают экземпляр, следующий вызов
// строит новый. Гостевой ABI:
//
//	start()                  — идемпотентная инициализация
//	get_buffer(len) -> ptr   — буфер обмена в памяти гостя
//	run(len)                 — обработка входа из буфера
//
// Хост-модуль "env" даёт гостю ограниченный доступ к миру только
// на время вызова; удержание доступа за пределами вызова невозможно,
// ссылка снимается до возврата из Run.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/logging"
)

// ErrNoAccess — хост-вызов вне активного Run
var ErrNoAccess = errors.New("скрипт обратился к миру вне вызова")

const wasmPageSize = 65536

// WorldAccess — операции мира, доступные гостю на время вызова.
// Реализация входит в проверку заимствований повторно: запрос
// записи компонента, уже взятого вызывающей системой, — паника.
type WorldAccess interface {
	// GetTargetBlock разрешает блок, на который направлен луч.
	// Запрос и ответ — pack-кодированные TargetBlockRequest и
	// TargetBlockResponse; пустой ответ означает промах.
	GetTargetBlock(request []byte) []byte
	// SetClassOfBlock применяет pack-кодированный SetBlockRequest
	SetClassOfBlock(request []byte) error
	// GetBlockClassByLabel возвращает класс блока по метке
	GetBlockClassByLabel(label string) (entity.BlockClass, bool)
	// BroadcastActionLocal раскладывает pack-кодированный
	// BroadcastActionRequest по накопителям действий игроков,
	// наблюдающих чанк актёра-источника
	BroadcastActionLocal(request []byte) error
}

type instance struct {
	mod       api.Module
	started   bool
	poisoned  bool
	getBuffer api.Function
	start     api.Function
	run       api.Function
}

// Registry — реестр гостевых модулей
type Registry struct {
	runtime  wazero.Runtime
	compiled []wazero.CompiledModule
	cache    []*instance
	labels   []string

	// Доступ к миру текущего вызова; nil вне Run
	access WorldAccess

	callTimeout time.Duration
	logger      *logging.Logger
}

// NewRegistry компилирует все модули из каталога dir.
// Файл модуля — <метка>.wasm. fuelPerCall задаёт бюджет вызова
// (интерпретируется как наносекунды исполнения гостя),
// memoryLimitBytes — потолок линейной памяти экземпляра.
func NewRegistry(
	ctx context.Context,
	dir string,
	lib *entity.LabelLibrary,
	fuelPerCall int64,
	memoryLimitBytes int64,
) (*Registry, error) {
	pages := uint32(memoryLimitBytes / wasmPageSize)
	if pages == 0 {
		pages = 1
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(pages)

	r := &Registry{
		runtime:     wazero.NewRuntimeWithConfig(ctx, runtimeConfig),
		compiled:    make([]wazero.CompiledModule, lib.Scripts.Len()),
		cache:       make([]*instance, lib.Scripts.Len()),
		labels:      lib.Scripts.Labels(),
		callTimeout: time.Duration(fuelPerCall) * time.Nanosecond,
		logger:      logging.NewLogger("script"),
	}

	if err := r.instantiateHostModule(ctx); err != nil {
		return nil, err
	}

	for i, label := range r.labels {
		path := filepath.Join(dir, label+".wasm")
		wasm, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение модуля скрипта %q: %w", label, err)
		}

		compiled, err := r.runtime.CompileModule(ctx, wasm)
		if err != nil {
			return nil, fmt.Errorf("компиляция скрипта %q: %w", label, err)
		}
		r.compiled[i] = compiled
	}

	r.logger.Info("📜 загружено %d модулей скриптов", len(r.compiled))
	return r, nil
}

// instantiateHostModule регистрирует хост-модуль "env"
func (r *Registry) instantiateHostModule(ctx context.Context) error {
	_, err := r.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context) uint32 {
			return uint32(entity.BlocksInChunkEdge)
		}).
		Export("get_blocks_in_chunk_edge").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint32 {
			if r.access == nil {
				panic(ErrNoAccess)
			}
			request, ok := mod.Memory().Read(ptr, length)
			if !ok {
				panic(fmt.Errorf("get_target_block: запрос вне памяти гостя"))
			}
			response := r.access.GetTargetBlock(request)
			if len(response) == 0 {
				return 0
			}
			return r.writeToGuest(ctx, mod, response)
		}).
		Export("get_target_block").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, ptr, length uint32) {
			if r.access == nil {
				panic(ErrNoAccess)
			}
			request, ok := mod.Memory().Read(ptr, length)
			if !ok {
				panic(fmt.Errorf("set_class_of_block: запрос вне памяти гостя"))
			}
			// Отказ мира не роняет экземпляр: вызов становится no-op
			if err := r.access.SetClassOfBlock(request); err != nil {
				r.logger.Error("set_class_of_block: %v", err)
			}
		}).
		Export("set_class_of_block").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, ptr, length uint32) {
			if r.access == nil {
				panic(ErrNoAccess)
			}
			request, ok := mod.Memory().Read(ptr, length)
			if !ok {
				panic(fmt.Errorf("broadcast_action_local: запрос вне памяти гостя"))
			}
			if err := r.access.BroadcastActionLocal(request); err != nil {
				r.logger.Error("broadcast_action_local: %v", err)
			}
		}).
		Export("broadcast_action_local").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, ptr, length uint32) uint64 {
			if r.access == nil {
				panic(ErrNoAccess)
			}
			label, ok := mod.Memory().Read(ptr, length)
			if !ok {
				panic(fmt.Errorf("get_block_class_by_label: метка вне памяти гостя"))
			}
			class, found := r.access.GetBlockClassByLabel(string(label))
			if !found {
				return 0
			}
			// Старшие 32 бита — признак наличия
			return 1<<32 | uint64(class)
		}).
		Export("get_block_class_by_label").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, ptr, length uint32) {
			msg, _ := mod.Memory().Read(ptr, length)
			panic(guestPanic(msg))
		}).
		Export("handle_panic").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, ptr, length uint32) {
			msg, ok := mod.Memory().Read(ptr, length)
			if ok {
				r.logger.Info("[guest] %s", string(msg))
			}
		}).
		Export("log").
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("создание хост-модуля env: %w", err)
	}
	return nil
}

// guestPanic — паника, объявленная самим гостем
type guestPanic []byte

// writeToGuest кладёт данные в буфер гостя и возвращает их длину
func (r *Registry) writeToGuest(ctx context.Context, mod api.Module, data []byte) uint32 {
	results, err := mod.ExportedFunction("get_buffer").Call(ctx, uint64(len(data)))
	if err != nil {
		panic(fmt.Errorf("get_buffer: %w", err))
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		panic(fmt.Errorf("запись ответа вне памяти гостя"))
	}
	return uint32(len(data))
}

func (r *Registry) getInstance(ctx context.Context, script entity.Script) (*instance, error) {
	if inst := r.cache[script]; inst != nil && !inst.poisoned {
		return inst, nil
	}

	mod, err := r.runtime.InstantiateModule(
		ctx,
		r.compiled[script],
		wazero.NewModuleConfig().
			WithName(fmt.Sprintf("%s-%d", r.labels[script], time.Now().UnixNano())).
			WithStartFunctions(),
	)
	if err != nil {
		return nil, fmt.Errorf("создание экземпляра скрипта %q: %w", r.labels[script], err)
	}

	inst := &instance{
		mod:       mod,
		getBuffer: mod.ExportedFunction("get_buffer"),
		start:     mod.ExportedFunction("start"),
		run:       mod.ExportedFunction("run"),
	}
	if inst.getBuffer == nil || inst.run == nil {
		mod.Close(ctx)
		return nil, fmt.Errorf("скрипт %q не экспортирует get_buffer/run", r.labels[script])
	}

	r.cache[script] = inst
	return inst, nil
}

// discard уничтожает экземпляр после сбоя
func (r *Registry) discard(ctx context.Context, script entity.Script) {
	if inst := r.cache[script]; inst != nil {
		inst.mod.Close(ctx)
		r.cache[script] = nil
	}
}

// Run выполняет скрипт с входными данными. Доступ к миру действует
// только на время вызова. Ошибка гостя — no-op для мира в той мере,
// в какой гость не успел применить хост-вызовы.
func (r *Registry) Run(
	ctx context.Context,
	script entity.Script,
	access WorldAccess,
	input []byte,
) (err error) {
	if int(script) >= len(r.compiled) {
		return fmt.Errorf("неизвестный скрипт %d", script)
	}

	inst, err := r.getInstance(ctx, script)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	r.access = access
	defer func() { r.access = nil }()

	defer func() {
		if p := recover(); p != nil {
			if msg, ok := p.(guestPanic); ok {
				err = fmt.Errorf("паника гостя %q: %s", r.labels[script], string(msg))
			} else {
				err = fmt.Errorf("сбой скрипта %q: %v", r.labels[script], p)
			}
			r.logger.Error("%v", err)
			r.discard(ctx, script)
		}
	}()

	if !inst.started {
		if inst.start != nil {
			if _, err := inst.start.Call(callCtx); err != nil {
				r.discard(ctx, script)
				return fmt.Errorf("инициализация скрипта %q: %w", r.labels[script], err)
			}
		}
		inst.started = true
	}

	results, err := inst.getBuffer.Call(callCtx, uint64(len(input)))
	if err != nil {
		r.discard(ctx, script)
		return fmt.Errorf("get_buffer скрипта %q: %w", r.labels[script], err)
	}

	if len(input) > 0 {
		if !inst.mod.Memory().Write(uint32(results[0]), input) {
			r.discard(ctx, script)
			return fmt.Errorf("вход скрипта %q вне памяти гостя", r.labels[script])
		}
	}

	if _, err := inst.run.Call(callCtx, uint64(len(input))); err != nil {
		// Таймаут бюджета или ловушка гостя
		r.discard(ctx, script)
		return fmt.Errorf("выполнение скрипта %q: %w", r.labels[script], err)
	}

	return nil
}

// Close освобождает рантайм и все экземпляры
func (r *Registry) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
