package relay

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/kafkarelay/internal/runtime/metadata"
)

// Stats is a point-in-time view of a running relay.
type Stats struct {
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	Relayed   uint64    `json:"relayed"`
	Failed    uint64    `json:"failed"`
	// Offsets holds the last relayed source offset per source partition.
	Offsets map[int32]int64 `json:"offsets"`
}

type relayCollectors struct {
	relayed *prometheus.CounterVec
	failed  *prometheus.CounterVec
	offset  *prometheus.GaugeVec
}

func newRelayCollectors(reg prometheus.Registerer) (*relayCollectors, error) {
	c := &relayCollectors{
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kafkarelay",
			Name:      "records_relayed_total",
			Help:      "Records written to the destination topic.",
		}, []string{"relay"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kafkarelay",
			Name:      "publish_failures_total",
			Help:      "Destination writes that failed and were left for redelivery.",
		}, []string{"relay"}),
		offset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kafkarelay",
			Name:      "source_offset",
			Help:      "Last relayed source offset per partition.",
		}, []string{"relay", "partition"}),
	}

	var err error
	if c.relayed, err = registerOrReuse(reg, c.relayed); err != nil {
		return nil, err
	}
	if c.failed, err = registerOrReuse(reg, c.failed); err != nil {
		return nil, err
	}
	if c.offset, err = registerOrReuse(reg, c.offset); err != nil {
		return nil, err
	}
	return c, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// statsRecorder tracks what the destination accepted.
type statsRecorder struct {
	name       string
	collectors *relayCollectors

	mu      sync.Mutex
	started time.Time
	relayed uint64
	failed  uint64
	offsets map[int32]int64
}

func newStatsRecorder(name string, collectors *relayCollectors) *statsRecorder {
	return &statsRecorder{
		name:       name,
		collectors: collectors,
		started:    time.Now().UTC(),
		offsets:    make(map[int32]int64),
	}
}

func (r *statsRecorder) observe(msgs []*message.Message, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.failed += uint64(len(msgs))
		if r.collectors != nil {
			r.collectors.failed.WithLabelValues(r.name).Add(float64(len(msgs)))
		}
		return
	}

	r.relayed += uint64(len(msgs))
	if r.collectors != nil {
		r.collectors.relayed.WithLabelValues(r.name).Add(float64(len(msgs)))
	}
	for _, msg := range msgs {
		partition, offset, ok := metadata.Metadata(msg.Metadata).Position()
		if !ok {
			continue
		}
		r.offsets[partition] = offset
		if r.collectors != nil {
			r.collectors.offset.WithLabelValues(r.name, strconv.FormatInt(int64(partition), 10)).Set(float64(offset))
		}
	}
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	offsets := make(map[int32]int64, len(r.offsets))
	for p, o := range r.offsets {
		offsets[p] = o
	}
	return Stats{
		Name:      r.name,
		StartedAt: r.started,
		Relayed:   r.relayed,
		Failed:    r.failed,
		Offsets:   offsets,
	}
}

// statsPublisher counts destination writes after they return.
type statsPublisher struct {
	message.Publisher
	rec *statsRecorder
}

func (p *statsPublisher) Publish(topic string, msgs ...*message.Message) error {
	err := p.Publisher.Publish(topic, msgs...)
	p.rec.observe(msgs, err)
	return err
}
