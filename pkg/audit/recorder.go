package audit

import (
	"context"
	"sync"
	"time"

	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
)

// DefaultRecorderBuffer is the number of entries a Recorder queues before
// dropping
const DefaultRecorderBuffer = 256

const recordTimeout = 5 * time.Second

// Recorder journals flow events in the background. It implements
// planchange.Observer: ObserveFlowEvent never blocks, and entries that do not
// fit in the queue are dropped and counted.
type Recorder struct {
	journal Journal
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
	logger  *observability.Logger

	queue     chan *Entry
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRecorder starts a recorder writing to journal
func NewRecorder(journal Journal, buffer int, metrics *observability.Metrics, logger *observability.Logger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultRecorderBuffer
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	r := &Recorder{
		journal: journal,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan *Entry, buffer),
		done:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// WithOTel also reports journal writes to m. Call it before the first entry
// is recorded.
func (r *Recorder) WithOTel(m *observability.OTelMetrics) *Recorder {
	r.otel = m
	return r
}

// ObserveFlowEvent queues e for the journal
func (r *Recorder) ObserveFlowEvent(e planchange.Event) {
	r.Enqueue(FromFlowEvent(e))
}

// Enqueue queues an entry. It reports false when the entry was dropped.
func (r *Recorder) Enqueue(e *Entry) bool {
	select {
	case <-r.done:
		r.count("dropped")
		return false
	default:
	}

	select {
	case r.queue <- e:
		return true
	default:
		r.count("dropped")
		r.logger.WithField("event_type", e.EventType).Warn("journal queue full, dropping entry")
		return false
	}
}

// Record writes e synchronously
func (r *Recorder) Record(ctx context.Context, e *Entry) error {
	err := r.journal.Record(ctx, e)
	if r.otel != nil {
		r.otel.RecordJournalWrite(ctx, err)
	}
	if err != nil {
		r.count("error")
		return err
	}
	r.count("success")
	return nil
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-r.done:
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.Record(ctx, e); err != nil {
		r.logger.WithError(err).
			WithField("event_type", e.EventType).
			WithField("flow_id", e.FlowID).
			Error("failed to journal entry")
	}
}

func (r *Recorder) count(status string) {
	if r.metrics != nil {
		r.metrics.JournalWritesTotal.WithLabelValues(status).Inc()
	}
}

// Close drains the queue and stops the recorder. The journal itself stays
// open.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}
