package export

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Sample читает блок в точке p только по выгруженным буферам - так же, как это
// делает рендерер. Эталонная CPU-реализация контракта.
func Sample(buf *Buffers, p vec.Vec3) (block.Block, error) {
	switch buf.Layout {
	case LayoutChunkGrid:
		return sampleGrid(buf, p)
	case LayoutOctree:
		return sampleOctree(buf, p)
	default:
		return block.Air, fmt.Errorf("%w: unknown layout %d", ErrMalformed, buf.Layout)
	}
}

func sampleGrid(buf *Buffers, p vec.Vec3) (block.Block, error) {
	size := buf.ChunkSize
	if !p.InCube(vec.Vec3{}, buf.Domain*size) {
		return block.Air, fmt.Errorf("sample %v: %w", p, block.ErrOutOfBounds)
	}

	chunkIndex := p.Z/size + buf.Domain*(p.Y/size+buf.Domain*(p.X/size))
	if chunkIndex >= len(buf.ChunkOffsets) {
		return block.Air, fmt.Errorf("%w: chunk %d missing", ErrMalformed, chunkIndex)
	}

	local := p.Z%size + size*(p.Y%size+size*(p.X%size))
	idx := int(buf.ChunkOffsets[chunkIndex]) + local
	if idx >= len(buf.Blocks) {
		return block.Air, fmt.Errorf("%w: block index %d", ErrMalformed, idx)
	}
	return buf.Blocks[idx], nil
}

func sampleOctree(buf *Buffers, p vec.Vec3) (block.Block, error) {
	size := 1 << buf.Scale
	origin := buf.Origin
	if !p.InCube(origin, size) {
		return block.Air, fmt.Errorf("sample %v: %w", p, block.ErrOutOfBounds)
	}

	idx := 0
	for {
		if idx >= len(buf.Nodes) {
			return block.Air, fmt.Errorf("%w: node index %d", ErrMalformed, idx)
		}
		node := buf.Nodes[idx]
		if node&NodeDividedFlag == 0 {
			return block.Block(node & NodePayloadMask), nil
		}
		if size == 1 {
			return block.Air, fmt.Errorf("%w: unit node %d is divided", ErrMalformed, idx)
		}

		// Те же правила октантов, что в octree.FindChild; менять только вместе.
		half := size / 2
		child := int(node & NodePayloadMask)
		if p.X >= origin.X+half {
			child += 4
			origin.X += half
		}
		if p.Y >= origin.Y+half {
			child += 2
			origin.Y += half
		}
		if p.Z >= origin.Z+half {
			child++
			origin.Z += half
		}
		idx = child
		size = half
	}
}
