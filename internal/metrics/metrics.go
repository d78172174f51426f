// Package metrics содержит Prometheus-метрики генерации, октодерева и выгрузки.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxel"

// Collector инкапсулирует метрики движка.
// Регистрируется в переданном регистре, чтобы тесты не конфликтовали с глобальным.
type Collector struct {
	generationDuration *prometheus.HistogramVec
	chunksGenerated    prometheus.Counter
	voxelErrors        prometheus.Counter
	octreeNodes        prometheus.Gauge
	octreeSubdivisions prometheus.Counter
	octreeWrites       *prometheus.CounterVec
	exportedBytes      *prometheus.CounterVec
	snapshots          *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Длительность генерации сетки чанков.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"mode"}),
		chunksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_generated_total",
			Help:      "Общее число сгенерированных чанков.",
		}),
		voxelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voxel_errors_total",
			Help:      "Вокселей, отклонённых генератором (остались воздухом).",
		}),
		octreeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "octree_nodes",
			Help:      "Текущее число узлов в арене октодерева.",
		}),
		octreeSubdivisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "octree_subdivisions_total",
			Help:      "Общее число делений узлов октодерева.",
		}),
		octreeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "octree_writes_total",
			Help:      "Записи вокселей в октодерево по результату.",
		}, []string{"result"}),
		exportedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exported_bytes_total",
			Help:      "Байт выгружено для рендерера.",
		}, []string{"layout"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_operations_total",
			Help:      "Операции со снимками в хранилище.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.generationDuration,
		c.chunksGenerated,
		c.voxelErrors,
		c.octreeNodes,
		c.octreeSubdivisions,
		c.octreeWrites,
		c.exportedBytes,
		c.snapshots,
	)
	return c
}

// ObserveGeneration учитывает один проход генерации
func (c *Collector) ObserveGeneration(mode string, d time.Duration, chunks, voxelErrors int) {
	c.generationDuration.WithLabelValues(mode).Observe(d.Seconds())
	c.chunksGenerated.Add(float64(chunks))
	if voxelErrors > 0 {
		c.voxelErrors.Add(float64(voxelErrors))
	}
}

// ObserveOctreeWrite учитывает запись в октодерево
func (c *Collector) ObserveOctreeWrite(err error, nodes int, subdivisions uint64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.octreeWrites.WithLabelValues(result).Inc()
	c.octreeNodes.Set(float64(nodes))
	if subdivisions > 0 {
		c.octreeSubdivisions.Add(float64(subdivisions))
	}
}

// SetOctreeNodes обновляет размер арены
func (c *Collector) SetOctreeNodes(nodes int) {
	c.octreeNodes.Set(float64(nodes))
}

// AddExported учитывает выгруженные байты
func (c *Collector) AddExported(layout string, bytes int) {
	c.exportedBytes.WithLabelValues(layout).Add(float64(bytes))
}

// ObserveSnapshot учитывает операцию со снимком (save, load, delete)
func (c *Collector) ObserveSnapshot(op string) {
	c.snapshots.WithLabelValues(op).Inc()
}
