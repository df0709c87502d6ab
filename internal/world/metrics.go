package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики менеджера мира. Нулевой указатель допустим и ничего не пишет.
type Metrics struct {
	chunksGenerated  prometheus.Counter
	chunksLoaded     prometheus.Counter
	chunksEvicted    prometheus.Counter
	chunksPersisted  prometheus.Counter
	corruptRecovered prometheus.Counter
	chunksResident   prometheus.Gauge
	generationTime   prometheus.Histogram
	blockChanges     *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		chunksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "chunks_generated_total",
			Help:      "Чанков, сгенерированных из сида.",
		}),
		chunksLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "chunks_loaded_total",
			Help:      "Чанков, загруженных из хранилища.",
		}),
		chunksEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "chunks_evicted_total",
			Help:      "Чанков, выгруженных из памяти.",
		}),
		chunksPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "chunks_persisted_total",
			Help:      "Записей чанков, сохранённых в хранилище.",
		}),
		corruptRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "corrupt_chunks_recovered_total",
			Help:      "Повреждённых записей, заменённых перегенерацией.",
		}),
		chunksResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "chunks_resident",
			Help:      "Чанков в памяти.",
		}),
		generationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "chunk_generation_seconds",
			Help:      "Время генерации одного чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		blockChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "world",
			Name:      "block_changes_total",
			Help:      "Изменений блоков по типу действия.",
		}, []string{"intent"}),
	}

	collectors := []prometheus.Collector{
		m.chunksGenerated, m.chunksLoaded, m.chunksEvicted, m.chunksPersisted,
		m.corruptRecovered, m.chunksResident, m.generationTime, m.blockChanges,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) generated(d time.Duration) {
	if m == nil {
		return
	}
	m.chunksGenerated.Inc()
	m.generationTime.Observe(d.Seconds())
}

func (m *Metrics) loaded() {
	if m != nil {
		m.chunksLoaded.Inc()
	}
}

func (m *Metrics) evicted() {
	if m != nil {
		m.chunksEvicted.Inc()
	}
}

func (m *Metrics) persisted() {
	if m != nil {
		m.chunksPersisted.Inc()
	}
}

func (m *Metrics) recovered() {
	if m != nil {
		m.corruptRecovered.Inc()
	}
}

func (m *Metrics) resident(n int) {
	if m != nil {
		m.chunksResident.Set(float64(n))
	}
}

func (m *Metrics) blockChanged(intent Intent) {
	if m != nil {
		m.blockChanges.WithLabelValues(intent.String()).Inc()
	}
}
