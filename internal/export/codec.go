package export

import (
	"encoding/binary"
	"fmt"
)

// EncodeWords сериализует слова в little-endian, как их ждет GPU-буфер
func EncodeWords(words []uint32) []byte {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}
	return data
}

// DecodeWords разбирает little-endian поток слов
func DecodeWords(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: word stream of %d bytes", ErrMalformed, len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return words, nil
}
