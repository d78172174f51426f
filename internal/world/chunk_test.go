package world

import (
	"errors"
	"testing"

	"github.com/annel0/voxel-engine/internal/world/block"
)

func TestChunkIndexBijection(t *testing.T) {
	chunk, err := NewDenseChunk(4)
	if err != nil {
		t.Fatalf("Не удалось создать чанк: %v", err)
	}

	seen := make(map[int]bool)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			for z := 0; z < 4; z++ {
				i := chunk.Index(x, y, z)
				if i < 0 || i >= 64 {
					t.Fatalf("Индекс (%d,%d,%d)=%d вне [0,64)", x, y, z, i)
				}
				if seen[i] {
					t.Fatalf("Индекс %d встречается дважды", i)
				}
				seen[i] = true
			}
		}
	}
	if len(seen) != 64 {
		t.Errorf("Ожидалось 64 различных индекса, получено %d", len(seen))
	}

	cases := []struct {
		x, y, z, want int
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 16},
		{0, 1, 0, 4},
		{0, 0, 1, 1},
		{3, 3, 3, 63},
	}
	for _, c := range cases {
		if got := chunk.Index(c.x, c.y, c.z); got != c.want {
			t.Errorf("Index(%d,%d,%d): ожидалось %d, получено %d", c.x, c.y, c.z, c.want, got)
		}
	}
}

func TestChunkCreateEmpty(t *testing.T) {
	chunk, err := NewDenseChunk(3)
	if err != nil {
		t.Fatalf("Не удалось создать чанк: %v", err)
	}
	if chunk.Len() != 27 {
		t.Errorf("Ожидалось 27 блоков, получено %d", chunk.Len())
	}
	for i, blk := range chunk.Blocks() {
		if blk != block.Air {
			t.Fatalf("Блок %d должен быть воздухом, получен %v", i, blk)
		}
	}

	if _, err := NewDenseChunk(0); !errors.Is(err, ErrRange) {
		t.Errorf("Ожидалась ErrRange для нулевого размера, получено %v", err)
	}
}

func TestChunkFillAndAt(t *testing.T) {
	chunk, _ := NewDenseChunk(4)
	err := chunk.Fill(func(x, y, z int) (block.Block, error) {
		return block.Pack(x, y, z, 255)
	})
	if err != nil {
		t.Fatalf("Ошибка заполнения: %v", err)
	}

	blk, err := chunk.At(1, 2, 3)
	if err != nil {
		t.Fatalf("Ошибка чтения: %v", err)
	}
	if blk != block.MustPack(1, 2, 3, 255) {
		t.Errorf("Ожидался rgba(1,2,3,255), получен %v", blk)
	}
	if chunk.SolidCount() != 64 {
		t.Errorf("Ожидалось 64 твердых блока, получено %d", chunk.SolidCount())
	}

	if _, err := chunk.At(4, 0, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Ожидалась ErrOutOfBounds, получено %v", err)
	}
}

func TestChunkFillReportsVoxelErrors(t *testing.T) {
	chunk, _ := NewDenseChunk(2)
	err := chunk.Fill(func(x, y, z int) (block.Block, error) {
		if x == 1 {
			// Канал вне диапазона: этот воксель пропускается
			return block.Pack(300, 0, 0, 255)
		}
		return block.Pack(0, 0, 0, 255)
	})
	if !errors.Is(err, block.ErrRange) {
		t.Fatalf("Ожидалась ErrRange, получено %v", err)
	}

	// Остальные воксели записаны, ошибочные остались воздухом
	good, _ := chunk.At(0, 1, 1)
	bad, _ := chunk.At(1, 1, 1)
	if !good.IsSolid() {
		t.Error("Корректный воксель должен быть записан")
	}
	if bad != block.Air {
		t.Errorf("Ошибочный воксель должен остаться воздухом, получен %v", bad)
	}
}

func TestChunkCopyInto(t *testing.T) {
	chunk, _ := NewDenseChunk(2)
	_ = chunk.Fill(func(x, y, z int) (block.Block, error) {
		return block.Block(chunk.Index(x, y, z) + 1), nil
	})

	dst := make([]block.Block, 10)
	if err := chunk.CopyInto(dst, 2); err != nil {
		t.Fatalf("Ошибка копирования: %v", err)
	}
	for i := 0; i < 8; i++ {
		if dst[2+i] != block.Block(i+1) {
			t.Errorf("dst[%d]: ожидалось %d, получено %d", 2+i, i+1, dst[2+i])
		}
	}
	if err := chunk.CopyInto(dst, 3); !errors.Is(err, ErrRange) {
		t.Errorf("Ожидалась ErrRange при переполнении, получено %v", err)
	}
}
