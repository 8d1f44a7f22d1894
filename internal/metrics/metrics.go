// Package metrics exposes the posting loop as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quotebot/internal/eventbus"
)

const namespace = "quotebot"

const collectTimeout = 5 * time.Second

// LengthReader reports the current queue length.
type LengthReader interface {
	Length(ctx context.Context) (int, error)
}

type Metrics struct {
	reg *prometheus.Registry

	posts          *prometheus.CounterVec
	schedules      prometheus.Counter
	slots          prometheus.Gauge
	nextPost       prometheus.Gauge
	lastPost       prometheus.Gauge
	rotationTarget prometheus.Gauge
}

// New registers the collectors on a private registry. When store is not
// nil the queue length is read from it on every scrape.
func New(store LengthReader) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Post attempts by result (sent, failed).",
		}, []string{"result"}),
		schedules: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_generated_total",
			Help:      "Posting schedules generated.",
		}),
		slots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_slots",
			Help:      "Instants in the most recently generated schedule.",
		}),
		nextPost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "next_post_timestamp_seconds",
			Help:      "Unix time of the next scheduled post, 0 when none is pending.",
		}),
		lastPost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_post_timestamp_seconds",
			Help:      "Unix time of the last successful post.",
		}),
		rotationTarget: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rotation_target",
			Help:      "Queue position the last posted item was moved to.",
		}),
	}
	m.posts.WithLabelValues("sent")
	m.posts.WithLabelValues("failed")

	m.reg.MustRegister(m.posts, m.schedules, m.slots, m.nextPost, m.lastPost, m.rotationTarget)
	if store != nil {
		m.reg.MustRegister(&queueCollector{
			store: store,
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "queue_length"),
				"Items in the posting queue.",
				nil, nil,
			),
		})
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe updates the collectors from one poster event.
func (m *Metrics) Observe(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.ScheduleGenerated:
		m.schedules.Inc()
		m.slots.Set(float64(len(d.Times)))
		m.setNext(firstOrZero(d.Times))
	case eventbus.PostSent:
		m.posts.WithLabelValues("sent").Inc()
		m.lastPost.Set(float64(d.PostedAt.Unix()))
		m.rotationTarget.Set(float64(d.Target))
		m.setNext(d.Next)
	case eventbus.PostFailed:
		m.posts.WithLabelValues("failed").Inc()
		m.setNext(d.Next)
	}
}

func (m *Metrics) setNext(t time.Time) {
	if t.IsZero() {
		m.nextPost.Set(0)
		return
	}
	m.nextPost.Set(float64(t.Unix()))
}

// Consume observes bus events until ctx is done.
func (m *Metrics) Consume(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}

func firstOrZero(ts []time.Time) time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	return ts[0]
}

type queueCollector struct {
	store LengthReader
	desc  *prometheus.Desc
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()
	n, err := c.store.Length(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n))
}
