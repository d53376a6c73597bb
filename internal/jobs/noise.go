package jobs

import (
	"context"
	"math"

	"github.com/Iron-Ham/taskgraph/internal/errors"
	"github.com/Iron-Ham/taskgraph/internal/scheduler"
)

const (
	noiseOctaves = 16
	noiseScale   = float32(0.001)
)

// NoiseTask renders a rectangle of 16-octave Perlin noise into a shared
// greyscale image, one byte per pixel.
type NoiseTask struct {
	scheduler.Base
	img           []byte
	stride        int
	x, y          int
	width, height int
}

// NewNoiseTask renders the w×h rectangle at (x, y) of an image with the given
// row stride. img must hold at least (y+h)*stride bytes.
func NewNoiseTask(img []byte, stride, x, y, w, h int) *NoiseTask {
	return &NoiseTask{img: img, stride: stride, x: x, y: y, width: w, height: h}
}

// Execute renders the rectangle.
func (t *NoiseTask) Execute(*scheduler.Scheduler) {
	for py := t.y; py < t.y+t.height; py++ {
		row := t.img[py*t.stride:]
		for px := t.x; px < t.x+t.width; px++ {
			row[px] = shade(px, py)
		}
	}
}

func shade(px, py int) byte {
	var sum float32
	scale, weight := noiseScale, float32(1)
	for range noiseOctaves {
		sum += noise3(float32(px)*scale, float32(py)*scale, 1) * weight
		scale *= 2
		weight *= 0.5
	}
	v := min(max(sum*0.5+0.5, 0), 1)
	return byte(v * 255)
}

// NoiseGrid splits a size×size image into tile×tile tasks joined to one
// counter.
type NoiseGrid struct {
	Image   []byte
	Size    int
	Tile    int
	Tasks   []*NoiseTask
	Counter *scheduler.Counter
}

// NewNoiseGrid allocates the image and its tiles. size must be a positive
// multiple of tile.
func NewNoiseGrid(size, tile int) (*NoiseGrid, error) {
	if size <= 0 || tile <= 0 || size%tile != 0 {
		return nil, errors.NewValidationError("image size must be a positive multiple of the tile size").
			WithField("tile").
			WithValue(tile)
	}
	g := &NoiseGrid{
		Image:   make([]byte, size*size),
		Size:    size,
		Tile:    tile,
		Counter: scheduler.NewCounter(),
	}
	for y := 0; y < size; y += tile {
		for x := 0; x < size; x += tile {
			t := NewNoiseTask(g.Image, size, x, y, tile, tile)
			t.JoinCounter(g.Counter)
			g.Tasks = append(g.Tasks, t)
		}
	}
	return g, nil
}

// Render adds every tile to s and waits for all of them. Tiles the scheduler
// refuses are rendered on the calling goroutine.
func (g *NoiseGrid) Render(ctx context.Context, s *scheduler.Scheduler) error {
	for _, t := range g.Tasks {
		if err := s.AddTask(t); err != nil {
			if !errors.IsRetryable(err) {
				return err
			}
			scheduler.Run(t)
		}
	}
	return g.Counter.Wait(ctx)
}

// RenderNoiseST renders a size×size image as a single task on the calling
// goroutine.
func RenderNoiseST(size int) []byte {
	img := make([]byte, size*size)
	scheduler.Run(NewNoiseTask(img, size, 0, 0, size, size))
	return img
}

var perm [512]int

func init() {
	for i := range perm {
		perm[i] = permutation[i&255]
	}
}

func fade(t float32) float32 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float32) float32 {
	return a + t*(b-a)
}

func grad(hash int, x, y, z float32) float32 {
	h := hash & 15
	u := y
	if h < 8 {
		u = x
	}
	var v float32
	switch {
	case h < 4:
		v = y
	case h == 12 || h == 14:
		v = x
	default:
		v = z
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}

// noise3 is Ken Perlin's improved noise.
func noise3(x, y, z float32) float32 {
	fx := int(math.Floor(float64(x)))
	fy := int(math.Floor(float64(y)))
	fz := int(math.Floor(float64(z)))
	X, Y, Z := fx&255, fy&255, fz&255
	x -= float32(fx)
	y -= float32(fy)
	z -= float32(fz)
	u, v, w := fade(x), fade(y), fade(z)

	a := perm[X] + Y
	aa, ab := perm[a]+Z, perm[a+1]+Z
	b := perm[X+1] + Y
	ba, bb := perm[b]+Z, perm[b+1]+Z

	return lerp(w,
		lerp(v,
			lerp(u, grad(perm[aa], x, y, z), grad(perm[ba], x-1, y, z)),
			lerp(u, grad(perm[ab], x, y-1, z), grad(perm[bb], x-1, y-1, z))),
		lerp(v,
			lerp(u, grad(perm[aa+1], x, y, z-1), grad(perm[ba+1], x-1, y, z-1)),
			lerp(u, grad(perm[ab+1], x, y-1, z-1), grad(perm[bb+1], x-1, y-1, z-1))))
}

var permutation = [256]int{
	151, 160, 137, 91, 90, 15, 131, 13, 201, 95, 96, 53, 194, 233, 7, 225,
	140, 36, 103, 30, 69, 142, 8, 99, 37, 240, 21, 10, 23, 190, 6, 148,
	247, 120, 234, 75, 0, 26, 197, 62, 94, 252, 219, 203, 117, 35, 11, 32,
	57, 177, 33, 88, 237, 149, 56, 87, 174, 20, 125, 136, 171, 168, 68, 175,
	74, 165, 71, 134, 139, 48, 27, 166, 77, 146, 158, 231, 83, 111, 229, 122,
	60, 211, 133, 230, 220, 105, 92, 41, 55, 46, 245, 40, 244, 102, 143, 54,
	65, 25, 63, 161, 1, 216, 80, 73, 209, 76, 132, 187, 208, 89, 18, 169,
	200, 196, 135, 130, 116, 188, 159, 86, 164, 100, 109, 198, 173, 186, 3, 64,
	52, 217, 226, 250, 124, 123, 5, 202, 38, 147, 118, 126, 255, 82, 85, 212,
	207, 206, 59, 227, 47, 16, 58, 17, 182, 189, 28, 42, 223, 183, 170, 213,
	119, 248, 152, 2, 44, 154, 163, 70, 221, 153, 101, 155, 167, 43, 172, 9,
	129, 22, 39, 253, 19, 98, 108, 110, 79, 113, 224, 232, 178, 185, 112, 104,
	218, 246, 97, 228, 251, 34, 242, 193, 238, 210, 144, 12, 191, 179, 162, 241,
	81, 51, 145, 235, 249, 14, 239, 107, 49, 192, 214, 31, 181, 199, 106, 157,
	184, 84, 204, 176, 115, 121, 50, 45, 127, 4, 150, 254, 138, 236, 205, 93,
	222, 114, 67, 29, 24, 72, 243, 141, 128, 195, 78, 66, 215, 61, 156, 180,
}
