package block

import "errors"

// Общие виды ошибок хранилища вокселей. Пакеты world и octree оборачивают их
// через fmt.Errorf("...: %w"), поэтому проверять нужно через errors.Is.
var (
	// ErrRange - значение канала, индекс или размер вне допустимых границ.
	// Значения никогда не обрезаются молча.
	ErrRange = errors.New("value out of range")

	// ErrInvalidState - операция недопустима в текущем состоянии структуры
	ErrInvalidState = errors.New("invalid state")

	// ErrOutOfBounds - пространственный запрос за пределами куба мира
	ErrOutOfBounds = errors.New("position out of bounds")
)
