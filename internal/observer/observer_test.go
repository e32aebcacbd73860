package observer

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	name  string
	count atomic.Int32
}

func (c *countingObserver) OnEvent(ctx context.Context, event ClassificationEvent) {
	c.count.Add(1)
}

func (c *countingObserver) GetObserverName() string { return c.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event ClassificationEvent) {
	panic("boom")
}

func (panickingObserver) GetObserverName() string { return "panicky" }

func TestEventPublisher(t *testing.T) {
	p := NewEventPublisher()
	a := &countingObserver{name: "a"}
	b := &countingObserver{name: "b"}
	p.Subscribe(a)
	p.Subscribe(b)
	p.Subscribe(panickingObserver{})

	p.NotifyObservers(context.Background(), ClassificationEvent{EventType: ClassificationStarted})
	p.Flush()
	assert.Equal(t, int32(1), a.count.Load())
	assert.Equal(t, int32(1), b.count.Load())

	p.Unsubscribe(a)
	p.NotifyObservers(context.Background(), ClassificationEvent{EventType: ClassificationStarted})
	p.Flush()
	assert.Equal(t, int32(1), a.count.Load())
	assert.Equal(t, int32(2), b.count.Load())
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	ctx := context.Background()
	o.OnEvent(ctx, ClassificationEvent{EventType: ClassificationCompleted, Verdict: "blurry", Score: 12, ProcessingTime: 20 * time.Millisecond})
	o.OnEvent(ctx, ClassificationEvent{EventType: ClassificationCompleted, Verdict: "sharp", Score: 800})
	o.OnEvent(ctx, ClassificationEvent{EventType: ClassificationCompleted, Verdict: "sharp", Score: 900})
	o.OnEvent(ctx, ClassificationEvent{EventType: ClassificationFailed, Reason: "decode"})
	o.OnEvent(ctx, ClassificationEvent{EventType: ClassificationFailed})
	o.OnEvent(ctx, ClassificationEvent{EventType: ClassificationStarted})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.classifications.WithLabelValues("blurry")))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.classifications.WithLabelValues("sharp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.failures.WithLabelValues("decode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.failures.WithLabelValues("unknown")))

	// a second registration on the same registry is rejected
	_, err = NewMetricsObserver(reg)
	assert.Error(t, err)
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)

	o := NewLoggingObserver(logger)
	o.OnEvent(context.Background(), ClassificationEvent{
		EventType: ClassificationCompleted,
		Source:    "a.png",
		Verdict:   "sharp",
		Score:     321,
		Metadata:  map[string]interface{}{"kernel": "laplacian4"},
	})

	out := buf.String()
	assert.Contains(t, out, "Blur classification completed")
	assert.Contains(t, out, `"verdict":"sharp"`)
	assert.Contains(t, out, `"kernel":"laplacian4"`)
	assert.Equal(t, "logging_observer", o.GetObserverName())
}

func TestLoggingObserver_FailureLevels(t *testing.T) {
	testCases := []struct {
		name      string
		eventType EventType
		reason    string
		wantLevel string
	}{
		{"bad request", ClassificationFailed, "validation", "warning"},
		{"too small", ClassificationFailed, "processing", "warning"},
		{"not an image", ClassificationFailed, "unsupported_media", "warning"},
		{"missing image", ImageFetchFailed, "not_found", "warning"},
		{"upstream down", ImageFetchFailed, "network", "error"},
		{"timeout", ClassificationFailed, "timeout", "error"},
		{"internal", ClassificationFailed, "internal", "error"},
		{"no reason", ClassificationFailed, "", "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logrus.New()
			logger.SetOutput(&buf)
			logger.SetFormatter(&logrus.JSONFormatter{})

			NewLoggingObserver(logger).OnEvent(context.Background(), ClassificationEvent{
				EventType:    tc.eventType,
				Source:       "a.png",
				ErrorMessage: "boom",
				Reason:       tc.reason,
			})

			assert.Contains(t, buf.String(), `"level":"`+tc.wantLevel+`"`)
		})
	}
}
