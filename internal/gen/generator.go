// Package gen реализует процедурную генерацию чанков, когда
// хранилище не содержит сохранённых блоков.
package gen

import (
	"fmt"

	"github.com/aquilax/go-perlin"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

const (
	perlinAlpha = 2.0
	perlinBeta  = 2.0
	perlinIter  = 3

	// Масштаб шума по горизонтали
	noiseScale = 64.0
	// Базовый уровень поверхности в блоках мира
	baseHeight = 16.0
	// Амплитуда рельефа в блоках
	heightAmplitude = 12.0

	dirtDepth = 3
)

// Generator детерминированно строит блоки чанка по (seed, chunk).
// Рельеф — высотная карта из шума Перлина: камень, сверху слой
// земли, на поверхности трава, выше воздух.
type Generator struct {
	noise *perlin.Perlin

	air   entity.BlockClass
	stone entity.BlockClass
	dirt  entity.BlockClass
	grass entity.BlockClass
}

// New создаёт генератор. Классы рельефа обязаны присутствовать
// в карте меток.
func New(seed int64, lib *entity.LabelLibrary) (*Generator, error) {
	g := &Generator{
		noise: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinIter, seed),
	}

	for _, req := range []struct {
		label string
		dst   *entity.BlockClass
	}{
		{"air", &g.air},
		{"stone", &g.stone},
		{"dirt", &g.dirt},
		{"grass", &g.grass},
	} {
		class, ok := lib.BlockClasses.Get(req.label)
		if !ok {
			return nil, fmt.Errorf("класс блока %q не определён", req.label)
		}
		*req.dst = class
	}

	return g, nil
}

// surfaceHeight возвращает высоту поверхности мира в колонке (x, y)
func (g *Generator) surfaceHeight(x, y int64) int64 {
	n := g.noise.Noise2D(float64(x)/noiseScale, float64(y)/noiseScale)
	return int64(baseHeight + n*heightAmplitude)
}

// Generate строит классы блоков чанка в порядке индексов блоков
func (g *Generator) Generate(chunk entity.Chunk) []entity.BlockClass {
	edge := int64(entity.BlocksInChunkEdge)
	classes := make([]entity.BlockClass, entity.BlocksInChunk())

	baseX := int64(chunk.Position.X) * edge
	baseY := int64(chunk.Position.Y) * edge
	baseZ := int64(chunk.Position.Z) * edge

	i := 0
	for z := int64(0); z < edge; z++ {
		worldZ := baseZ + z
		for y := int64(0); y < edge; y++ {
			for x := int64(0); x < edge; x++ {
				height := g.surfaceHeight(baseX+x, baseY+y)

				var class entity.BlockClass
				switch {
				case worldZ > height:
					class = g.air
				case worldZ == height:
					class = g.grass
				case worldZ >= height-dirtDepth:
					class = g.dirt
				default:
					class = g.stone
				}

				classes[i] = class
				i++
			}
		}
	}

	return classes
}
