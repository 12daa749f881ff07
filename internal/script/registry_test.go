package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// Минимальный модуль: память и экспорты get_buffer/run, run — no-op
var noopModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // заголовок
	0x01, 0x0a, 0x02, // типы: (i32)->(i32), (i32)->()
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x00,
	0x03, 0x03, 0x02, 0x00, 0x01, // функции
	0x05, 0x03, 0x01, 0x00, 0x01, // память, 1 страница
	0x07, 0x1d, 0x03, // экспорты
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0a, 'g', 'e', 't', '_', 'b', 'u', 'f', 'f', 'e', 'r', 0x00, 0x00,
	0x03, 'r', 'u', 'n', 0x00, 0x01,
	0x0a, 0x09, 0x02, // код
	0x04, 0x00, 0x41, 0x00, 0x0b, // get_buffer: i32.const 0
	0x02, 0x00, 0x0b, // run: пусто
}

// Тот же модуль, но run зацикливается навсегда
var spinModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0a, 0x02,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x00,
	0x03, 0x03, 0x02, 0x00, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x1d, 0x03,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0a, 'g', 'e', 't', '_', 'b', 'u', 'f', 'f', 'e', 'r', 0x00, 0x00,
	0x03, 'r', 'u', 'n', 0x00, 0x01,
	0x0a, 0x0e, 0x02,
	0x04, 0x00, 0x41, 0x00, 0x0b,
	0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b, // run: loop br 0
}

// Модуль без обязательных экспортов
var bareModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

type stubAccess struct{}

func (stubAccess) GetTargetBlock([]byte) []byte { return nil }

func (stubAccess) SetClassOfBlock([]byte) error { return nil }

func (stubAccess) BroadcastActionLocal([]byte) error { return nil }

func (stubAccess) GetBlockClassByLabel(string) (entity.BlockClass, bool) {
	return 0, false
}

func writeScripts(t *testing.T, modules map[string][]byte) (string, *entity.LabelLibrary) {
	t.Helper()

	dir := t.TempDir()
	labels := make([]string, 0, len(modules))
	for label, wasm := range modules {
		require.NoError(t, os.WriteFile(filepath.Join(dir, label+".wasm"), wasm, 0o644))
		labels = append(labels, label)
	}
	return dir, &entity.LabelLibrary{
		Scripts: entity.NewLabelMap[entity.Script](labels),
	}
}

func TestRegistryRun(t *testing.T) {
	ctx := context.Background()
	dir, lib := writeScripts(t, map[string][]byte{"noop": noopModule})

	r, err := NewRegistry(ctx, dir, lib, int64(time.Second), 1<<20)
	require.NoError(t, err)
	defer r.Close(ctx)

	noop, _ := lib.Scripts.Get("noop")
	assert.NoError(t, r.Run(ctx, noop, stubAccess{}, []byte("вход")))

	// Повторный вызов идёт через кэшированный экземпляр
	assert.NoError(t, r.Run(ctx, noop, stubAccess{}, nil))
}

func TestRegistryUnknownScript(t *testing.T) {
	ctx := context.Background()
	dir, lib := writeScripts(t, map[string][]byte{"noop": noopModule})

	r, err := NewRegistry(ctx, dir, lib, int64(time.Second), 1<<20)
	require.NoError(t, err)
	defer r.Close(ctx)

	assert.Error(t, r.Run(ctx, entity.Script(99), stubAccess{}, nil))
}

func TestRegistryMissingModuleFile(t *testing.T) {
	ctx := context.Background()
	lib := &entity.LabelLibrary{
		Scripts: entity.NewLabelMap[entity.Script]([]string{"ghost"}),
	}

	_, err := NewRegistry(ctx, t.TempDir(), lib, int64(time.Second), 1<<20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRegistryMissingExports(t *testing.T) {
	ctx := context.Background()
	dir, lib := writeScripts(t, map[string][]byte{"bare": bareModule})

	r, err := NewRegistry(ctx, dir, lib, int64(time.Second), 1<<20)
	require.NoError(t, err)
	defer r.Close(ctx)

	bare, _ := lib.Scripts.Get("bare")
	err = r.Run(ctx, bare, stubAccess{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get_buffer")
}

func TestRegistryCallBudget(t *testing.T) {
	ctx := context.Background()
	dir, lib := writeScripts(t, map[string][]byte{"spin": spinModule})

	r, err := NewRegistry(ctx, dir, lib, int64(50*time.Millisecond), 1<<20)
	require.NoError(t, err)
	defer r.Close(ctx)

	spin, _ := lib.Scripts.Get("spin")
	assert.Error(t, r.Run(ctx, spin, stubAccess{}, nil))

	// Сбойный экземпляр выброшен, следующий вызов строит новый
	assert.Error(t, r.Run(ctx, spin, stubAccess{}, nil))
}
