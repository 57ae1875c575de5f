// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/piccolo/service/internal/storage"
)

var (
	Uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "piccolo",
		Name:      "uploads_total",
		Help:      "Photo uploads by result.",
	}, []string{"result"})
	UploadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "piccolo",
		Name:      "uploaded_bytes_total",
		Help:      "Total bytes written to object storage by uploads.",
	})
	StorageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "piccolo",
		Name:      "storage_operation_duration_seconds",
		Help:      "Latency of object-storage calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(Uploads, UploadedBytes, StorageDuration)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentStore times every call made through s. Results pass through
// untouched.
func InstrumentStore(s storage.Store) storage.Store {
	return &instrumentedStore{next: s}
}

// InstrumentProvider wraps every store resolved through p with
// InstrumentStore.
func InstrumentProvider(p storage.Provider) storage.Provider {
	return func(ctx context.Context) (storage.Store, error) {
		s, err := p(ctx)
		if err != nil {
			return nil, err
		}
		return InstrumentStore(s), nil
	}
}

type instrumentedStore struct {
	next storage.Store
}

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StorageDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) Bucket() string { return s.next.Bucket() }

func (s *instrumentedStore) CreateBucket(ctx context.Context) error {
	start := time.Now()
	err := s.next.CreateBucket(ctx)
	observe("create_bucket", start, err)
	return err
}

func (s *instrumentedStore) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	start := time.Now()
	objs, err := s.next.ListObjects(ctx, prefix)
	observe("list_objects", start, err)
	return objs, err
}

func (s *instrumentedStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.next.GetObject(ctx, key)
	observe("get_object", start, err)
	return data, err
}

func (s *instrumentedStore) WriteObject(ctx context.Context, data []byte, contentType, key string) error {
	start := time.Now()
	err := s.next.WriteObject(ctx, data, contentType, key)
	observe("write_object", start, err)
	return err
}
