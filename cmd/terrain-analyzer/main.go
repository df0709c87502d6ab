package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/terrain"
)

// previewGlyphs символы блоков в ASCII-превью
var previewGlyphs = map[block.Type]byte{
	block.Water:     '~',
	block.Sand:      '.',
	block.Grass:     '"',
	block.Dirt:      ',',
	block.Stone:     '#',
	block.DeepStone: '%',
	block.Wood:      'T',
	block.Coal:      'c',
	block.Lava:      '!',
	block.Diamond:   '*',
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML конфигурация (секция world)")
		seed       = flag.Int64("seed", config.DefaultSeed, "сид мира")
		originX    = flag.Int("x", 0, "левый край области")
		originY    = flag.Int("y", 0, "верхний край области")
		width      = flag.Int("width", 512, "ширина области в блоках")
		height     = flag.Int("height", 512, "высота области в блоках")
		bins       = flag.Int("bins", 10, "корзин в гистограмме высот")
		preview    = flag.Bool("preview", false, "вывести ASCII-карту области")
		cols       = flag.Int("cols", 80, "максимальная ширина превью в символах")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			cfg.World.Seed = *seed
		}
	})

	if *width < 1 || *height < 1 {
		log.Fatalf("❌ Размеры области должны быть положительными: %dx%d", *width, *height)
	}
	area := vec.NewRect(vec.Vec2{X: *originX, Y: *originY}, *width, *height)
	if !area.Min.InRange() || !area.Max.InRange() {
		log.Fatalf("❌ Область %v выходит за пределы мира", area)
	}

	gen, err := terrain.NewGenerator(cfg.World)
	if err != nil {
		log.Fatalf("❌ Ошибка генератора: %v", err)
	}

	out := os.Stdout
	dist := terrain.Survey(gen, area)
	printDistribution(out, cfg.World.Seed, dist)
	printDeviation(out, dist, terrain.DefaultTargets)
	printHistogram(out, terrain.ElevationHistogram(gen, area, *bins))

	if *preview {
		fmt.Fprintln(out)
		renderPreview(out, gen, area, *cols)
	}
}

func printDistribution(w io.Writer, seed int64, d terrain.Distribution) {
	fmt.Fprintf(w, "Сид %d, область %dx%d от (%d,%d), блоков: %d\n",
		seed, d.Area.Width(), d.Area.Height(), d.Area.Min.X, d.Area.Min.Y, d.Total)
	fmt.Fprintln(w, "Распределение:")
	for _, t := range d.Types() {
		fmt.Fprintf(w, "  %-10s %8d  %6.2f%%\n", t, d.Counts[t], d.Percent(t))
	}
}

func printDeviation(w io.Writer, d terrain.Distribution, targets map[block.Type]float64) {
	types := make([]block.Type, 0, len(targets))
	for t := range targets {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	dev := d.Deviation(targets)
	fmt.Fprintln(w, "Отклонение от целевого распределения (п.п.):")
	for _, t := range types {
		fmt.Fprintf(w, "  %-10s цель %5.1f%%  факт %6.2f%%  %+6.2f\n", t, targets[t], d.Percent(t), dev[t])
	}
}

func printHistogram(w io.Writer, hist []int) {
	peak := 0
	for _, n := range hist {
		if n > peak {
			peak = n
		}
	}
	fmt.Fprintln(w, "Гистограмма высот:")
	for i, n := range hist {
		bar := 0
		if peak > 0 {
			bar = n * 40 / peak
		}
		lo := float64(i) / float64(len(hist))
		hi := float64(i+1) / float64(len(hist))
		fmt.Fprintf(w, "  [%.2f, %.2f) %8d %s\n", lo, hi, n, strings.Repeat("█", bar))
	}
}

// renderPreview рисует область, прореживая её до maxCols символов в ширину
func renderPreview(w io.Writer, g *terrain.Generator, area vec.Rect, maxCols int) {
	if maxCols < 1 {
		maxCols = 1
	}
	step := (area.Width() + maxCols - 1) / maxCols
	if step < 1 {
		step = 1
	}

	line := make([]byte, 0, maxCols)
	// Символы терминала примерно вдвое выше своей ширины
	for y := area.Min.Y; y < area.Max.Y; y += 2 * step {
		line = line[:0]
		for x := area.Min.X; x < area.Max.X; x += step {
			glyph, ok := previewGlyphs[g.BlockAt(x, y)]
			if !ok {
				glyph = '?'
			}
			line = append(line, glyph)
		}
		fmt.Fprintln(w, string(line))
	}
}
