package block

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Block)
)

// Register добавляет именованный блок в палитру
func Register(name string, blk Block) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = blk
}

// Get возвращает блок палитры по имени
func Get(name string) (Block, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	blk, exists := registry[name]
	return blk, exists
}

// Names возвращает отсортированный список имен палитры
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Базовая палитра. Красный канал держим ниже 128, чтобы блоки помещались
// в 31-битную полезную нагрузку листа октодерева.
var (
	Stone = MustPack(112, 112, 112, 255)
	Dirt  = MustPack(110, 78, 48, 255)
	Grass = MustPack(62, 158, 58, 255)
	Sand  = MustPack(120, 112, 78, 255)
	Water = MustPack(38, 92, 204, 255)
)

func init() {
	Register("air", Air)
	Register("stone", Stone)
	Register("dirt", Dirt)
	Register("grass", Grass)
	Register("sand", Sand)
	Register("water", Water)
}
