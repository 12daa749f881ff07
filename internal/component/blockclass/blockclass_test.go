package blockclass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

func testLibrary() *entity.LabelLibrary {
	return &entity.LabelLibrary{
		BlockClasses: entity.NewLabelMap[entity.BlockClass]([]string{"air", "stone"}),
	}
}

func writeCollision(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "block_collision.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCollision(t *testing.T) {
	lib := testLibrary()
	path := writeCollision(t, `
collision:
  stone: SolidCube
`)

	c, err := LoadCollision(path, lib)
	require.NoError(t, err)

	stone, _ := lib.BlockClasses.Get("stone")
	kind, ok := c.Get(stone)
	assert.True(t, ok)
	assert.Equal(t, CollisionSolidCube, kind)

	// Класс без записи проходим
	air, _ := lib.BlockClasses.Get("air")
	_, ok = c.Get(air)
	assert.False(t, ok)
}

func TestLoadCollisionUnknownClass(t *testing.T) {
	path := writeCollision(t, `
collision:
  lava: SolidCube
`)
	_, err := LoadCollision(path, testLibrary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lava")
}

func TestLoadCollisionUnknownKind(t *testing.T) {
	path := writeCollision(t, `
collision:
  stone: Ramp
`)
	_, err := LoadCollision(path, testLibrary())
	require.Error(t, err)
}

func TestComponentOutOfRange(t *testing.T) {
	c := NewComponent[CollisionKind](1)
	_, ok := c.Get(entity.BlockClass(5))
	assert.False(t, ok)
}
