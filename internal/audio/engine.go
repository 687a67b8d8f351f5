// Package audio implements the playback-engine collaborator over the beep
// library and the system speaker. One Engine backs one player widget. The
// speaker mixer underneath is shared, so engines never clear it globally;
// each one detaches only its own streamer chain.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/domain"
)

const (
	_eventBuffer    = 16
	_positionPeriod = 500 * time.Millisecond
	_maxSourceSize  = 256 * 1024 * 1024 // 256 MB
	_fetchTimeout   = 30 * time.Second
)

// source bundles the resources of one loaded audio file
type source struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	added    bool // chain currently queued on the speaker
	duration float64
	endedCh  chan struct{}
	quit     chan struct{}
}

// Engine is a beep-backed domain.AudioEngine. Commands may arrive from any
// goroutine; event emission follows the engine's own pacing.
type Engine struct {
	logger *zap.Logger
	client *http.Client
	rate   beep.SampleRate

	events chan domain.EngineEvent

	mu       sync.Mutex
	src      *source
	url      string
	gen      int // bumped per SetSource; stale loads discard themselves
	loading  bool
	wantPlay bool
	closed   bool
	lastDrop time.Time

	wg sync.WaitGroup
}

func newEngine(logger *zap.Logger, rate beep.SampleRate) *Engine {
	return &Engine{
		logger: logger,
		rate:   rate,
		events: make(chan domain.EngineEvent, _eventBuffer),
		client: &http.Client{Timeout: _fetchTimeout},
	}
}

// Events returns the engine's event stream
func (e *Engine) Events() <-chan domain.EngineEvent {
	return e.events
}

// SetSource replaces the engine's source. The bytes are not fetched until
// the first Play; with one engine per widget on the page, eager loading
// would pull the whole library into memory at startup. Events from the
// previous source become inert immediately.
func (e *Engine) SetSource(url string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.gen++
	e.url = url
	e.loading = false
	e.wantPlay = false
	e.detachLocked()
	e.mu.Unlock()
}

// Play starts or resumes the current source, fetching it first if needed.
// Playback begins as soon as the load completes.
func (e *Engine) Play() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wantPlay = true
	s := e.src
	var url string
	var gen int
	if s == nil && !e.loading && e.url != "" {
		e.loading = true
		url = e.url
		gen = e.gen
	}
	e.mu.Unlock()

	if s != nil {
		e.start(s)
		return
	}
	if url != "" {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.load(url, gen)
		}()
	}
}

// Pause suspends playback, keeping the position
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wantPlay = false
	s := e.src
	e.mu.Unlock()

	if s != nil {
		speaker.Lock()
		s.ctrl.Paused = true
		speaker.Unlock()
	}
}

// SeekTo moves the playback position, in seconds
func (e *Engine) SeekTo(seconds float64) {
	e.mu.Lock()
	s := e.src
	e.mu.Unlock()
	if s == nil || seconds < 0 {
		return
	}

	target := s.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	speaker.Lock()
	if target > s.streamer.Len() {
		target = s.streamer.Len()
	}
	err := s.streamer.Seek(target)
	speaker.Unlock()
	if err != nil {
		e.logger.Warn("Seek failed", zap.Error(err))
		return
	}

	// Report the new position right away so a paused seek still moves the
	// display without waiting for the next tick.
	e.emit(domain.EngineEvent{Kind: domain.EventTimeUpdate, Position: seconds, Duration: s.duration}, s)
}

// Close stops playback, tears the source down and closes the event stream
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.gen++
	e.detachLocked()
	e.mu.Unlock()

	e.wg.Wait()
	close(e.events)
	return nil
}

// detachLocked unhooks the current source from the speaker and stops its
// goroutines. Called with e.mu held.
func (e *Engine) detachLocked() {
	s := e.src
	if s == nil {
		return
	}
	e.src = nil

	speaker.Lock()
	s.ctrl.Paused = true
	s.ctrl.Streamer = nil // chain drains and the mixer drops it
	speaker.Unlock()

	close(s.quit)
	if err := s.streamer.Close(); err != nil {
		e.logger.Debug("Streamer close failed", zap.Error(err))
	}
}

// load fetches and decodes one source. The generation check discards the
// result when SetSource ran again in the meantime.
func (e *Engine) load(url string, gen int) {
	data, err := e.fetch(url)
	if err == nil {
		var streamer beep.StreamSeekCloser
		var format beep.Format
		if streamer, format, err = decode(url, data); err == nil {
			e.install(streamer, format, gen)
			return
		}
	}

	e.logger.Error("Failed to load audio source",
		zap.String("url", url),
		zap.Error(err))
	e.mu.Lock()
	stale := gen != e.gen
	if !stale {
		e.loading = false
	}
	e.mu.Unlock()
	if !stale {
		e.emitError(err)
	}
}

// emitError reports a load failure to the consumer. Errors are rare, so a
// full buffer only ever means the consumer is gone.
func (e *Engine) emitError(err error) {
	select {
	case e.events <- domain.EngineEvent{Kind: domain.EventError, Err: err.Error()}:
	default:
		e.logger.Warn("Event channel full, dropping error report")
	}
}

// install publishes a decoded source and starts its goroutines
func (e *Engine) install(streamer beep.StreamSeekCloser, format beep.Format, gen int) {
	s := &source{
		streamer: streamer,
		format:   format,
		ctrl:     &beep.Ctrl{Streamer: streamer, Paused: true},
		duration: format.SampleRate.D(streamer.Len()).Seconds(),
		endedCh:  make(chan struct{}),
		quit:     make(chan struct{}),
	}

	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		_ = streamer.Close()
		return
	}
	e.src = s
	e.loading = false
	wantPlay := e.wantPlay
	e.mu.Unlock()

	e.emit(domain.EngineEvent{Kind: domain.EventLoadedMetadata, Duration: s.duration}, s)

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.watchEnded(s, gen)
	}()
	go func() {
		defer e.wg.Done()
		e.tickPosition(s)
	}()

	if wantPlay {
		e.start(s)
	}
}

// start queues the source's streamer chain on the speaker if needed and
// unpauses it
func (e *Engine) start(s *source) {
	e.mu.Lock()
	ended := s.endedCh
	e.mu.Unlock()

	speaker.Lock()
	if !s.added {
		s.added = true
		resampled := beep.Resample(4, s.format.SampleRate, e.rate, s.ctrl)
		speaker.Unlock()
		speaker.Play(beep.Seq(resampled, beep.Callback(func() {
			close(ended)
		})))
		speaker.Lock()
	}
	s.ctrl.Paused = false
	speaker.Unlock()
}

// watchEnded rewinds the source and reports each end of playback. Mirrors a
// media element: after ended, the source sits at position zero, paused, and
// a later Play replays it from the top.
func (e *Engine) watchEnded(s *source, gen int) {
	for {
		e.mu.Lock()
		ended := s.endedCh
		e.mu.Unlock()

		select {
		case <-s.quit:
			return
		case <-ended:
		}

		speaker.Lock()
		s.ctrl.Paused = true
		s.added = false
		if err := s.streamer.Seek(0); err != nil {
			e.logger.Debug("Rewind after end failed", zap.Error(err))
		}
		speaker.Unlock()

		e.mu.Lock()
		if e.closed || gen != e.gen {
			e.mu.Unlock()
			return
		}
		e.wantPlay = false
		s.endedCh = make(chan struct{}) // re-arm for a replay
		e.mu.Unlock()

		e.emit(domain.EngineEvent{Kind: domain.EventEnded, Duration: s.duration}, s)
	}
}

// tickPosition emits periodic position reports while the source is audible
func (e *Engine) tickPosition(s *source) {
	ticker := time.NewTicker(_positionPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			speaker.Lock()
			paused := s.ctrl.Paused
			pos := s.streamer.Position()
			speaker.Unlock()
			if paused {
				continue
			}
			e.emitDroppable(domain.EngineEvent{
				Kind:     domain.EventTimeUpdate,
				Position: s.format.SampleRate.D(pos).Seconds(),
				Duration: s.duration,
			})
		}
	}
}

// emit delivers an event the consumer must see. It blocks until the player
// takes it, giving up only when the source is detached.
func (e *Engine) emit(ev domain.EngineEvent, s *source) {
	select {
	case e.events <- ev:
	case <-s.quit:
	}
}

// emitDroppable delivers a position report, dropping it when the consumer
// lags. Warnings are rate-limited to one per second.
func (e *Engine) emitDroppable(ev domain.EngineEvent) {
	select {
	case e.events <- ev:
	default:
		e.mu.Lock()
		warn := time.Since(e.lastDrop) > time.Second
		if warn {
			e.lastDrop = time.Now()
		}
		e.mu.Unlock()
		if warn {
			e.logger.Warn("Event channel full, dropping position report")
		}
	}
}

// fetch pulls the source bytes: HTTP for gateway URLs, the filesystem for
// local library paths
func (e *Engine) fetch(url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		data, err := os.ReadFile(url)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "jukeboxDaemon/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxSourceSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}

// readSeekCloser adapts an in-memory buffer to the decoder interfaces so
// seeking works on streamed HTTP bodies too
type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

// decode picks a decoder from the source extension
func decode(url string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rsc := readSeekCloser{bytes.NewReader(data)}

	switch strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])) {
	case ".mp3":
		return mp3.Decode(rsc)
	case ".wav":
		return wav.Decode(rsc)
	case ".ogg":
		return vorbis.Decode(rsc)
	case ".m4a":
		return nil, beep.Format{}, fmt.Errorf("m4a decoding is not supported")
	default:
		// The gateway serves audio without extensions occasionally; mp3 is
		// the dominant format in the library.
		return mp3.Decode(rsc)
	}
}
