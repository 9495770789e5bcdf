package assess

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-practice-agent/internal/observability/metrics"
)

// rollingBufferSeconds bounds the whole-call rolling buffer. Oldest audio is
// evicted first.
const rollingBufferSeconds = 20

// bytesPerSecond for 8kHz 16-bit mono PCM.
const bytesPerSecond = 8000 * 2

// workItem is one immutable queued unit: the audio and inferred reference
// text for one completed utterance.
type workItem struct {
	referenceText string
	audio         []byte
}

// Limits defines guardrails for the pipeline queue.
type Limits struct {
	QueueDepth     int           // pending assessments before new items are dropped
	AssessTimeout  time.Duration // per-item provider deadline
	MinSnapshotLen int           // snapshots shorter than this are rejected as noise
}

// DefaultLimits returns sensible pipeline guardrails.
func DefaultLimits() Limits {
	return Limits{
		QueueDepth:     8,
		AssessTimeout:  20 * time.Second,
		MinSnapshotLen: bytesPerSecond / 4, // 250ms of audio
	}
}

// Pipeline buffers caller audio and schedules pronunciation assessments.
//
// Every inbound PCM chunk lands in two places: a rolling whole-call buffer
// (bounded, oldest evicted) and a per-utterance buffer that resets each time
// voice activity starts. When a final transcript arrives the per-utterance
// buffer is snapshotted and queued with the transcript as reference text.
// A single worker drains the queue strictly in FIFO order so one utterance's
// audio replay never interleaves with another's.
type Pipeline struct {
	assessor Assessor
	limits   Limits

	// OnResult receives each completed assessment with its reference text.
	OnResult func(referenceText string, res *Result)
	// OnError receives per-item failures. The queue continues regardless.
	OnError func(referenceText string, err error)

	// Unscripted selects the single-pass no-reference mode instead of the
	// two-step scripted path.
	Unscripted bool

	mu        sync.Mutex
	rolling   []byte
	utterance []byte
	closed    bool

	queue chan workItem
	done  chan struct{}
}

// NewPipeline creates a pipeline and starts its worker.
func NewPipeline(assessor Assessor, limits Limits) *Pipeline {
	if limits.QueueDepth <= 0 {
		limits.QueueDepth = DefaultLimits().QueueDepth
	}
	if limits.AssessTimeout <= 0 {
		limits.AssessTimeout = DefaultLimits().AssessTimeout
	}
	p := &Pipeline{
		assessor: assessor,
		limits:   limits,
		queue:    make(chan workItem, limits.QueueDepth),
		done:     make(chan struct{}),
	}
	go p.worker()
	return p
}

// Append adds one inbound PCM chunk to both buffers.
func (p *Pipeline) Append(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.rolling = append(p.rolling, pcm...)
	if max := rollingBufferSeconds * bytesPerSecond; len(p.rolling) > max {
		p.rolling = p.rolling[len(p.rolling)-max:]
	}
	p.utterance = append(p.utterance, pcm...)
}

// ResetUtterance clears the per-utterance buffer. Called when voice activity
// starts so leftover audio cannot contaminate the next utterance's score.
func (p *Pipeline) ResetUtterance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.utterance = p.utterance[:0]
}

// UtteranceBytes returns the current per-utterance buffer size.
func (p *Pipeline) UtteranceBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.utterance)
}

// OnFinalTranscript snapshots the per-utterance buffer, queues an assessment
// with the transcript as reference text, and resets the buffer. A full queue
// or an undersized snapshot drops the item with an error callback; neither
// stalls the stream.
func (p *Pipeline) OnFinalTranscript(text string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	snapshot := make([]byte, len(p.utterance))
	copy(snapshot, p.utterance)
	p.utterance = p.utterance[:0]
	p.mu.Unlock()

	if len(snapshot) < p.limits.MinSnapshotLen {
		p.reportError(text, ErrEmptySnapshot)
		return
	}

	select {
	case p.queue <- workItem{referenceText: text, audio: snapshot}:
	default:
		log.Warn().
			Str("component", "assess").
			Int("queueDepth", p.limits.QueueDepth).
			Msg("assessment queue full, dropping utterance")
		p.reportError(text, ErrQueueFull)
	}
}

// worker drains the queue: one assessment in flight at a time, strictly in
// arrival order. A failed item is reported and skipped.
func (p *Pipeline) worker() {
	for {
		select {
		case <-p.done:
			return
		case item := <-p.queue:
			p.process(item)
		}
	}
}

func (p *Pipeline) process(item workItem) {
	ctx, cancel := context.WithTimeout(context.Background(), p.limits.AssessTimeout)
	defer cancel()

	reference := item.referenceText
	if p.Unscripted {
		reference = ""
	}

	start := time.Now()
	res, err := p.assessor.Assess(ctx, item.audio, reference)
	metrics.DefaultMetrics.RecordAssessment(err, time.Since(start).Seconds())
	if err != nil {
		p.reportError(item.referenceText, err)
		return
	}

	if !p.Unscripted && res.RecognizedText != "" && !sharesWord(res.RecognizedText, item.referenceText) {
		// The scoring pass heard something else entirely; the snapshot was
		// probably misaligned with the transcript. Keep the result flagged.
		res.LowConfidence = true
		log.Warn().
			Str("component", "assess").
			Str("reference", item.referenceText).
			Str("recognized", res.RecognizedText).
			Msg("assessment text diverged from reference, flagging low confidence")
	}

	log.Debug().
		Str("component", "assess").
		Dur("latency", time.Since(start)).
		Float64("accuracy", res.Accuracy).
		Msg("assessment completed")

	p.mu.Lock()
	closed := p.closed
	cb := p.OnResult
	p.mu.Unlock()
	if !closed && cb != nil {
		cb(item.referenceText, res)
	}
}

func (p *Pipeline) reportError(referenceText string, err error) {
	p.mu.Lock()
	closed := p.closed
	cb := p.OnError
	p.mu.Unlock()
	if !closed && cb != nil {
		cb(referenceText, err)
	}
}

// Close stops the worker and releases buffers. Idempotent. In-flight work
// may complete but its result is discarded.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.rolling = nil
	p.utterance = nil
	p.mu.Unlock()
	close(p.done)
}
