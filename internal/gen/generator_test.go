package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/vec"
)

func testLibrary() *entity.LabelLibrary {
	return &entity.LabelLibrary{
		BlockClasses: entity.NewLabelMap[entity.BlockClass]([]string{"air", "stone", "dirt", "grass"}),
	}
}

func TestNewRequiresTerrainClasses(t *testing.T) {
	lib := &entity.LabelLibrary{
		BlockClasses: entity.NewLabelMap[entity.BlockClass]([]string{"air", "stone"}),
	}

	_, err := New(1, lib)
	assert.Error(t, err)
}

func TestGenerateDeterministic(t *testing.T) {
	lib := testLibrary()

	g1, err := New(7, lib)
	require.NoError(t, err)
	g2, err := New(7, lib)
	require.NoError(t, err)

	chunk := entity.Chunk{Position: vec.Vec3{X: 3, Y: -2, Z: 0}}
	assert.Equal(t, g1.Generate(chunk), g2.Generate(chunk))
}

func TestGenerateSeedChangesTerrain(t *testing.T) {
	lib := testLibrary()

	g1, err := New(1, lib)
	require.NoError(t, err)
	g2, err := New(2, lib)
	require.NoError(t, err)

	chunk := entity.Chunk{Position: vec.Vec3{X: 0, Y: 0, Z: 0}}
	assert.NotEqual(t, g1.Generate(chunk), g2.Generate(chunk))
}

func TestGenerateLayers(t *testing.T) {
	lib := testLibrary()
	g, err := New(7, lib)
	require.NoError(t, err)

	air, _ := lib.BlockClasses.Get("air")
	stone, _ := lib.BlockClasses.Get("stone")
	grass, _ := lib.BlockClasses.Get("grass")

	// Высоко над поверхностью только воздух
	high := g.Generate(entity.Chunk{Position: vec.Vec3{Z: 10}})
	for _, c := range high {
		require.Equal(t, air, c)
	}

	// Глубоко под поверхностью только камень
	deep := g.Generate(entity.Chunk{Position: vec.Vec3{Z: -10}})
	for _, c := range deep {
		require.Equal(t, stone, c)
	}

	// Чанк с поверхностью содержит и воздух, и траву
	surface := g.Generate(entity.Chunk{Position: vec.Vec3{Z: 0}})
	counts := make(map[entity.BlockClass]int)
	for _, c := range surface {
		counts[c]++
	}
	assert.Positive(t, counts[air])
	assert.Positive(t, counts[grass])
}

func TestGenerateNoAirBelowSurface(t *testing.T) {
	// В каждой колонке воздух непрерывен сверху: ниже первого
	// твёрдого блока воздуха нет
	lib := testLibrary()
	g, err := New(3, lib)
	require.NoError(t, err)

	air, _ := lib.BlockClasses.Get("air")
	classes := g.Generate(entity.Chunk{Position: vec.Vec3{Z: 0}})

	e := entity.BlocksInChunkEdge
	for x := int32(0); x < e; x++ {
		for y := int32(0); y < e; y++ {
			seenAir := false
			for z := int32(0); z < e; z++ {
				c := classes[entity.BlockFromCoords(x, y, z)]
				if c == air {
					seenAir = true
				} else {
					require.False(t, seenAir, "твёрдый блок над воздухом в колонке (%d, %d)", x, y)
				}
			}
		}
	}
}
