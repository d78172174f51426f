package block

import (
	"fmt"
)

// Block - упакованный 32-битный цвет RGBA, где альфа-канал кодирует заполненность:
// 0 - воздух, 255 - твердый блок.
//
//	r8_g8_b8_a8 = (r << 24) | (g << 16) | (b << 8) | a
type Block uint32

const (
	// Air - пустой блок (все каналы нулевые)
	Air Block = 0

	// SolidThreshold - минимальная альфа, при которой блок считается твердым
	SolidThreshold = 128

	// MaxChannel - максимальное значение одного канала
	MaxChannel = 255
)

// Pack упаковывает каналы в Block. Каждый канал должен лежать в [0, 255].
func Pack(r, g, b, a int) (Block, error) {
	if !inChannelRange(r) || !inChannelRange(g) || !inChannelRange(b) || !inChannelRange(a) {
		return Air, fmt.Errorf("pack rgba(%d,%d,%d,%d): %w", r, g, b, a, ErrRange)
	}
	return Block(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)), nil
}

// MustPack как Pack, но паникует при недопустимых каналах. Используется для констант.
func MustPack(r, g, b, a int) Block {
	blk, err := Pack(r, g, b, a)
	if err != nil {
		panic(err)
	}
	return blk
}

// Unpack раскладывает Block на каналы. Операция тотальная.
func Unpack(blk Block) (r, g, b, a int) {
	return blk.RGBA()
}

// IsSolid сообщает, является ли блок твердым
func IsSolid(blk Block) bool {
	return blk.IsSolid()
}

// RGBA возвращает каналы блока
func (blk Block) RGBA() (r, g, b, a int) {
	v := uint32(blk)
	return int(v >> 24 & 0xFF), int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

// Alpha возвращает канал заполненности
func (blk Block) Alpha() int {
	return int(uint32(blk) & 0xFF)
}

// IsSolid возвращает true, если альфа не меньше SolidThreshold.
// Генераторы пишут только 0 и 255; промежуточные значения делятся порогом пополам.
func (blk Block) IsSolid() bool {
	return blk.Alpha() >= SolidThreshold
}

// String возвращает блок в виде rgba(r,g,b,a)
func (blk Block) String() string {
	r, g, b, a := blk.RGBA()
	return fmt.Sprintf("rgba(%d,%d,%d,%d)", r, g, b, a)
}

func inChannelRange(v int) bool {
	return v >= 0 && v <= MaxChannel
}
