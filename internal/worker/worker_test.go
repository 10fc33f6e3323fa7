package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/classifier"
	imageprocessor "github.com/not-nullexception/team-classifier/internal/processor/image"
	"github.com/not-nullexception/team-classifier/internal/queue"
	"github.com/not-nullexception/team-classifier/internal/sink"
)

type stubQueue struct {
	handler      queue.Handler
	consumeErr   error
	connected    bool
	drained      bool
	drainTimeout time.Duration
}

func (s *stubQueue) Publish(ctx context.Context, msg queue.Message) error { return nil }

func (s *stubQueue) Consume(ctx context.Context, handler queue.Handler) error {
	s.handler = handler
	return s.consumeErr
}

func (s *stubQueue) Connected() bool { return s.connected }

func (s *stubQueue) Drain(timeout time.Duration) bool {
	s.drainTimeout = timeout
	return s.drained
}

func (s *stubQueue) Close() error    { return nil }

type recordingSink struct {
	mu        sync.Mutex
	artifacts []sink.Artifact
	err       error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Store(ctx context.Context, a sink.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, a)
	return r.err
}

var (
	modelOnce sync.Once
	testModel *classifier.Model
)

func sharedModel(t *testing.T) *classifier.Model {
	t.Helper()
	modelOnce.Do(func() {
		m, err := classifier.Train(450, 123, 3)
		if err != nil {
			panic(err)
		}
		testModel = m
	})
	return testModel
}

func categoryPayload(t *testing.T, c classifier.Category) string {
	t.Helper()
	s, err := imageprocessor.EncodeBase64(classifier.SyntheticImage(c))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestWorker(t *testing.T, q queue.Client, s sink.Sink, cfg *config.WorkerConfig) *Worker {
	t.Helper()
	if cfg == nil {
		cfg = &config.WorkerConfig{Count: 1}
	}
	return New(q, sharedModel(t), s, cfg)
}

func TestProcessClassifiesSyntheticImages(t *testing.T) {
	w := newTestWorker(t, &stubQueue{}, nil, nil)

	for _, c := range classifier.Categories() {
		t.Run(c.String(), func(t *testing.T) {
			res, err := w.Process(context.Background(), queue.Delivery{
				Message:     queue.Message{ID: "id-" + c.String(), Type: "team", Image: categoryPayload(t, c)},
				DeliveryTag: 11,
			})
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if res.Prediction.Category != c {
				t.Errorf("predicted %s, want %s", res.Prediction.Category, c)
			}
			if res.MessageID != "id-"+c.String() || res.DeliveryTag != 11 {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestProcessDecodeErrors(t *testing.T) {
	w := newTestWorker(t, &stubQueue{}, nil, nil)

	tests := []struct {
		name  string
		image string
	}{
		{"missing image", ""},
		{"invalid base64", "not*base64*at*all"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("plain text"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Process(context.Background(), queue.Delivery{Message: queue.Message{ID: "x", Image: tt.image}})
			var de *queue.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want DecodeError", err)
			}
			if de.Field != "image" {
				t.Errorf("field = %q", de.Field)
			}
		})
	}
}

func TestProcessInvokesSink(t *testing.T) {
	rs := &recordingSink{}
	w := newTestWorker(t, &stubQueue{}, rs, nil)

	_, err := w.Process(context.Background(), queue.Delivery{
		Message: queue.Message{ID: "m-9", Type: "team", Timestamp: "2026-10-19T08:00:00Z", Image: categoryPayload(t, classifier.Green)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(rs.artifacts) != 1 {
		t.Fatalf("sink got %d artifacts", len(rs.artifacts))
	}
	a := rs.artifacts[0]
	if a.MessageID != "m-9" || a.Prediction.Category != classifier.Green || a.Format != "png" || a.SentAt != "2026-10-19T08:00:00Z" {
		t.Errorf("artifact = %+v", a)
	}
}

func TestSinkFailureDoesNotFailMessage(t *testing.T) {
	rs := &recordingSink{err: errors.New("bucket gone")}
	w := newTestWorker(t, &stubQueue{}, rs, nil)

	err := w.handleDelivery(context.Background(), queue.Delivery{
		Message: queue.Message{ID: "m-10", Image: categoryPayload(t, classifier.Red)},
	})
	if err != nil {
		t.Fatalf("handleDelivery: %v", err)
	}
}

func TestProcessingDelayIsCancellable(t *testing.T) {
	w := newTestWorker(t, &stubQueue{}, nil, &config.WorkerConfig{Count: 1, ProcessingDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := w.Process(ctx, queue.Delivery{Message: queue.Message{ID: "slow", Image: categoryPayload(t, classifier.Blue)}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("delay did not stop on cancellation")
	}
}

func TestMessageTimeoutBoundsProcessing(t *testing.T) {
	w := newTestWorker(t, &stubQueue{}, nil, &config.WorkerConfig{
		Count:           1,
		ProcessingDelay: time.Hour,
		MessageTimeout:  20 * time.Millisecond,
	})

	err := w.handleDelivery(context.Background(), queue.Delivery{
		Message: queue.Message{ID: "bounded", Image: categoryPayload(t, classifier.Blue)},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestProcessingDelayCompletes(t *testing.T) {
	w := newTestWorker(t, &stubQueue{}, nil, &config.WorkerConfig{Count: 1, ProcessingDelay: 10 * time.Millisecond})

	start := time.Now()
	if _, err := w.Process(context.Background(), queue.Delivery{Message: queue.Message{ID: "d", Image: categoryPayload(t, classifier.Red)}}); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("processing delay skipped")
	}
}

func TestStartRegistersHandler(t *testing.T) {
	q := &stubQueue{connected: true}
	w := newTestWorker(t, q, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if q.handler == nil {
		t.Fatal("no handler registered")
	}
	if !w.Ready() {
		t.Error("worker not ready with model and connection")
	}

	if err := q.handler(context.Background(), queue.Delivery{Message: queue.Message{ID: "bad", Image: "%%"}}); err == nil {
		t.Error("handler accepted an undecodable image")
	}
	if err := q.handler(context.Background(), queue.Delivery{Message: queue.Message{ID: "ok", Image: categoryPayload(t, classifier.Red)}}); err != nil {
		t.Errorf("handler rejected a valid image: %v", err)
	}
}

func TestStartPropagatesConsumeError(t *testing.T) {
	w := newTestWorker(t, &stubQueue{consumeErr: errors.New("no channel")}, nil, nil)
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	w := newTestWorker(t, &stubQueue{}, nil, &config.WorkerConfig{Count: 2, ProcessingDelay: 30 * time.Millisecond})
	payload := categoryPayload(t, classifier.Green)

	var peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.handleDelivery(context.Background(), queue.Delivery{Message: queue.Message{ID: "c", Image: payload}})
		}()
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				if v := w.active.Load(); v > peak.Load() {
					peak.Store(v)
				}
				time.Sleep(time.Millisecond)
			}
		}
	}()

	wg.Wait()
	close(stop)

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if v := w.active.Load(); v != 0 {
		t.Errorf("active = %d after all messages finished", v)
	}
}

func TestStopDrainsQueueClient(t *testing.T) {
	tests := []struct {
		name    string
		drained bool
	}{
		{"all settled", true},
		{"timed out", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &stubQueue{drained: tt.drained}
			w := newTestWorker(t, q, nil, nil)

			if got := w.Stop(250 * time.Millisecond); got != tt.drained {
				t.Errorf("Stop() = %v, want %v", got, tt.drained)
			}
			if q.drainTimeout != 250*time.Millisecond {
				t.Errorf("drain timeout = %s, want the shutdown timeout", q.drainTimeout)
			}
		})
	}
}
