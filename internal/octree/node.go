package octree

import (
	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Node - упакованный узел арены.
// Бит 31 - флаг деления, биты 30..0 - индекс первого потомка или значение листа.
type Node uint32

// LeafNode упаковывает лист со значением v. Старший бит значения должен быть нулевым.
func LeafNode(v block.Block) Node {
	return Node(uint32(v) & export.NodePayloadMask)
}

// BranchNode упаковывает ветвь, чьи 8 потомков начинаются с childBase
func BranchNode(childBase int) Node {
	return Node(export.NodeDividedFlag | uint32(childBase)&export.NodePayloadMask)
}

// IsBranch сообщает, разделен ли узел
func (n Node) IsBranch() bool {
	return uint32(n)&export.NodeDividedFlag != 0
}

// Payload возвращает значение листа
func (n Node) Payload() block.Block {
	return block.Block(uint32(n) & export.NodePayloadMask)
}

// ChildBase возвращает индекс первого потомка ветви
func (n Node) ChildBase() int {
	return int(uint32(n) & export.NodePayloadMask)
}

// FitsPayload сообщает, помещается ли блок в лист
func FitsPayload(v block.Block) bool {
	return uint32(v)&export.NodeDividedFlag == 0
}
