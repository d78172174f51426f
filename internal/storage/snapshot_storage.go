package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/vec"
)

var storageLog = logging.For("storage")

var (
	// ErrSnapshotNotFound - снимка с таким ID нет
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrStorageClosed - хранилище уже закрыто
	ErrStorageClosed = errors.New("snapshot storage closed")
)

// Слов uint32 в одной части потока. Части пишутся отдельными значениями,
// чтобы большие миры не упирались в лимит транзакции BadgerDB.
var partWords = 1 << 20

const keyPrefix = "snapshot:"

// Потоки слов снимка
const (
	streamBlocks = "blocks"
	streamChunks = "chunks"
	streamNodes  = "nodes"
)

// SnapshotMeta описывает сохранённый снимок. Хранится в JSON под ключом snapshot:<id>:meta.
type SnapshotMeta struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Layout      string         `json:"layout"`
	CreatedAt   time.Time      `json:"created_at"`
	Domain      int            `json:"domain,omitempty"`
	ChunkSize   int            `json:"chunk_size,omitempty"`
	Scale       int            `json:"scale,omitempty"`
	Origin      vec.Vec3       `json:"origin"`
	Words       map[string]int `json:"words"` // Число слов в каждом потоке
	Parts       map[string]int `json:"parts"` // Число частей в каждом потоке
	RawBytes    int            `json:"raw_bytes"`
	StoredBytes int            `json:"stored_bytes"`
}

// SnapshotStorage хранит выгруженные буферы в BadgerDB, сжимая потоки слов zstd
type SnapshotStorage struct {
	db      *badger.DB
	dbPath  string
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	mutex   sync.RWMutex
	isReady bool
}

// NewSnapshotStorage открывает хранилище в dataPath/snapshots.
// При inMemory данные живут только в памяти процесса.
func NewSnapshotStorage(dataPath string, inMemory bool) (*SnapshotStorage, error) {
	dbPath := filepath.Join(dataPath, "snapshots")
	opts := badger.DefaultOptions(dbPath)
	if inMemory {
		dbPath = ""
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &SnapshotStorage{
		db:      db,
		dbPath:  dbPath,
		enc:     enc,
		dec:     dec,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (s *SnapshotStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

func metaKey(id string) []byte {
	return []byte(keyPrefix + id + ":meta")
}

func partKey(id, stream string, part int) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%d", keyPrefix, id, stream, part))
}

// SaveSnapshot сохраняет буферы под новым ID. Метаданные пишутся последними,
// поэтому незавершённый снимок не виден в ListSnapshots.
func (s *SnapshotStorage) SaveSnapshot(name string, buf *export.Buffers) (*SnapshotMeta, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStorageClosed
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("save snapshot %q: %w", name, err)
	}

	meta := &SnapshotMeta{
		ID:        uuid.NewString(),
		Name:      name,
		Layout:    buf.Layout.String(),
		CreatedAt: time.Now().UTC(),
		Domain:    buf.Domain,
		ChunkSize: buf.ChunkSize,
		Scale:     buf.Scale,
		Origin:    buf.Origin,
		Words:     make(map[string]int),
		Parts:     make(map[string]int),
	}

	streams := map[string][]uint32{}
	switch buf.Layout {
	case export.LayoutChunkGrid:
		streams[streamBlocks] = export.BlockWords(buf.Blocks)
		streams[streamChunks] = buf.ChunkOffsets
	case export.LayoutOctree:
		streams[streamNodes] = buf.Nodes
	}

	// Cancel после Flush не вызываем: WriteBatch закрывает throttle только один раз
	wb := s.db.NewWriteBatch()
	for stream, words := range streams {
		meta.Words[stream] = len(words)
		meta.RawBytes += 4 * len(words)
		for part, start := 0, 0; start < len(words); part, start = part+1, start+partWords {
			end := start + partWords
			if end > len(words) {
				end = len(words)
			}
			packed := s.enc.EncodeAll(export.EncodeWords(words[start:end]), nil)
			meta.StoredBytes += len(packed)
			if err := wb.Set(partKey(meta.ID, stream, part), packed); err != nil {
				wb.Cancel()
				return nil, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
			}
			meta.Parts[stream] = part + 1
		}
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(meta.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	storageLog.Debug("💾 Снимок %s (%s, %s) сохранён: %d → %d байт", meta.ID, meta.Name, meta.Layout, meta.RawBytes, meta.StoredBytes)
	return meta, nil
}

// GetMeta возвращает метаданные снимка
func (s *SnapshotStorage) GetMeta(id string) (*SnapshotMeta, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStorageClosed
	}

	var meta *SnapshotMeta
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		meta, err = readMeta(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func readMeta(txn *badger.Txn, id string) (*SnapshotMeta, error) {
	item, err := txn.Get(metaKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var meta SnapshotMeta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка десериализации метаданных %s: %w", id, err)
	}
	return &meta, nil
}

// LoadSnapshot читает снимок и восстанавливает буферы
func (s *SnapshotStorage) LoadSnapshot(id string) (*SnapshotMeta, *export.Buffers, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, nil, ErrStorageClosed
	}

	var (
		meta *SnapshotMeta
		buf  *export.Buffers
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if meta, err = readMeta(txn, id); err != nil {
			return err
		}

		layout, err := export.ParseLayout(meta.Layout)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", id, err)
		}
		buf = &export.Buffers{
			Layout:    layout,
			Domain:    meta.Domain,
			ChunkSize: meta.ChunkSize,
			Scale:     meta.Scale,
			Origin:    meta.Origin,
		}

		read := func(stream string) ([]uint32, error) {
			words := make([]uint32, 0, meta.Words[stream])
			for part := 0; part < meta.Parts[stream]; part++ {
				item, err := txn.Get(partKey(id, stream, part))
				if err != nil {
					return nil, fmt.Errorf("snapshot %s %s part %d: %w", id, stream, part, err)
				}
				err = item.Value(func(val []byte) error {
					raw, err := s.dec.DecodeAll(val, nil)
					if err != nil {
						return err
					}
					chunk, err := export.DecodeWords(raw)
					if err != nil {
						return err
					}
					words = append(words, chunk...)
					return nil
				})
				if err != nil {
					return nil, fmt.Errorf("snapshot %s %s part %d: %w", id, stream, part, err)
				}
			}
			if len(words) != meta.Words[stream] {
				return nil, fmt.Errorf("snapshot %s %s: %d words, expected %d: %w", id, stream, len(words), meta.Words[stream], export.ErrMalformed)
			}
			return words, nil
		}

		switch layout {
		case export.LayoutChunkGrid:
			blocks, err := read(streamBlocks)
			if err != nil {
				return err
			}
			buf.Blocks = export.WordsToBlocks(blocks)
			if buf.ChunkOffsets, err = read(streamChunks); err != nil {
				return err
			}
		case export.LayoutOctree:
			if buf.Nodes, err = read(streamNodes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := buf.Validate(); err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return meta, buf, nil
}

// ListSnapshots возвращает метаданные всех снимков, старые первыми
func (s *SnapshotStorage) ListSnapshots() ([]SnapshotMeta, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStorageClosed
	}

	var list []SnapshotMeta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), ":meta") {
				continue
			}
			var meta SnapshotMeta
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации %s: %w", item.Key(), err)
			}
			list = append(list, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// DeleteSnapshot удаляет снимок вместе со всеми частями
func (s *SnapshotStorage) DeleteSnapshot(id string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStorageClosed
	}

	var meta *SnapshotMeta
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		if meta, err = readMeta(txn, id); err != nil {
			return err
		}
		return txn.Delete(metaKey(id))
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	for stream, parts := range meta.Parts {
		for part := 0; part < parts; part++ {
			if err := wb.Delete(partKey(id, stream, part)); err != nil {
				wb.Cancel()
				return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}

	storageLog.Debug("🗑️ Снимок %s удалён", id)
	return nil
}
