package player

import (
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alexplain/jukebox/internal/domain"
	"github.com/alexplain/jukebox/internal/registry"
)

// fakeEngine records the commands a player issues and lets tests feed the
// event stream a real engine would produce.
type fakeEngine struct {
	mu      sync.Mutex
	events  chan domain.EngineEvent
	sources []string
	plays   int
	pauses  int
	seeks   []float64
	closed  bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan domain.EngineEvent, 64)}
}

func (f *fakeEngine) SetSource(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, url)
}

func (f *fakeEngine) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeEngine) SeekTo(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeEngine) Events() <-chan domain.EngineEvent {
	return f.events
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeEngine) emit(ev domain.EngineEvent) {
	f.events <- ev
}

func (f *fakeEngine) sourceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

func (f *fakeEngine) lastSource() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		return ""
	}
	return f.sources[len(f.sources)-1]
}

func (f *fakeEngine) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

func (f *fakeEngine) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

func (f *fakeEngine) seekCalls() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeks...)
}

// eventually polls a condition until it holds or the deadline passes.
// Engine events are handled on the player's own goroutine, so tests must
// wait for the loop to catch up.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTrackFixture(t *testing.T, reg *registry.Registry) (*TrackPlayer, *fakeEngine) {
	t.Helper()
	engine := newFakeEngine()
	p := NewTrackPlayer(zap.NewNop(), reg, engine, "/roughs/jam.mp3", "Jam")
	t.Cleanup(func() { _ = p.Close() })
	return p, engine
}

func TestTrackPlayer_PlayPause(t *testing.T) {
	reg := registry.New(zap.NewNop())
	p, engine := newTrackFixture(t, reg)

	if p.Snapshot().Playing {
		t.Fatal("new player must start idle")
	}
	if engine.sourceCount() != 1 || engine.lastSource() != "/roughs/jam.mp3" {
		t.Fatalf("expected source set once at construction, got %v", engine.sourceCount())
	}

	p.Play()
	if !p.Snapshot().Playing {
		t.Fatal("expected playing after Play")
	}
	if engine.playCount() != 1 {
		t.Fatalf("expected 1 engine play, got %d", engine.playCount())
	}
	if h, ok := reg.Active(); !ok || h.String() != p.ID() {
		t.Fatal("playing track must hold the registry claim")
	}

	p.Pause()
	if p.Snapshot().Playing {
		t.Fatal("expected paused after Pause")
	}
	if engine.pauseCount() != 1 {
		t.Fatalf("expected 1 engine pause, got %d", engine.pauseCount())
	}
	if _, ok := reg.Active(); ok {
		t.Fatal("pausing must release the registry claim")
	}

	// Pausing while not playing is a no-op
	p.Pause()
	if engine.pauseCount() != 1 {
		t.Fatalf("pause on a paused player reached the engine")
	}
}

func TestTrackPlayer_MutualExclusion(t *testing.T) {
	reg := registry.New(zap.NewNop())
	a, _ := newTrackFixture(t, reg)
	b, _ := newTrackFixture(t, reg)

	a.Play()
	b.Play()

	if a.Snapshot().Playing {
		t.Fatal("A must be paused after B claims playback")
	}
	if !b.Snapshot().Playing {
		t.Fatal("B must be playing after its claim")
	}

	a.Play()

	if b.Snapshot().Playing {
		t.Fatal("B must be paused after A claims playback back")
	}
	if !a.Snapshot().Playing {
		t.Fatal("A must be playing after reclaiming")
	}
}

func TestTrackPlayer_TimeUpdate(t *testing.T) {
	reg := registry.New(zap.NewNop())
	p, engine := newTrackFixture(t, reg)

	p.Play()

	engine.emit(domain.EngineEvent{Kind: domain.EventLoadedMetadata, Duration: 60})
	eventually(t, func() bool { return p.Snapshot().Length == "1:00" }, "metadata never reached the display")

	engine.emit(domain.EngineEvent{Kind: domain.EventTimeUpdate, Position: 30, Duration: 60})
	eventually(t, func() bool { return p.Snapshot().Progress == 50 }, "time update never reached the display")

	snap := p.Snapshot()
	if snap.Elapsed != "0:30" {
		t.Errorf("expected elapsed 0:30, got %q", snap.Elapsed)
	}
	if snap.Playing != true {
		t.Errorf("time updates must not change playback state")
	}
}

func TestTrackPlayer_TimeUpdateGuardsBadDuration(t *testing.T) {
	reg := registry.New(zap.NewNop())
	p, engine := newTrackFixture(t, reg)

	p.Play()
	engine.emit(domain.EngineEvent{Kind: domain.EventTimeUpdate, Position: 5, Duration: math.NaN()})
	eventually(t, func() bool { return p.Snapshot().Elapsed == "0:05" }, "position update never arrived")

	snap := p.Snapshot()
	if snap.Progress != 0 {
		t.Errorf("progress must be skipped while the duration is unusable, got %v", snap.Progress)
	}
	if snap.Length != "0:00" {
		t.Errorf("unknown duration must render 0:00, got %q", snap.Length)
	}
}

func TestTrackPlayer_Ended(t *testing.T) {
	reg := registry.New(zap.NewNop())
	p, engine := newTrackFixture(t, reg)

	p.Play()
	engine.emit(domain.EngineEvent{Kind: domain.EventEnded})
	eventually(t, func() bool { return !p.Snapshot().Playing }, "ended never reset the playing flag")

	snap := p.Snapshot()
	if snap.Progress != 0 || snap.Elapsed != "0:00" {
		t.Errorf("ended must rewind the visual state, got %+v", snap)
	}
	if _, ok := reg.Active(); ok {
		t.Fatal("a finished track must not keep the claim slot occupied")
	}
}

func TestTrackPlayer_Seek(t *testing.T) {
	reg := registry.New(zap.NewNop())
	p, engine := newTrackFixture(t, reg)

	// Unknown duration: seek is a no-op
	p.Play()
	p.Seek(0.5)
	if len(engine.seekCalls()) != 0 {
		t.Fatal("seek with unknown duration must not reach the engine")
	}

	engine.emit(domain.EngineEvent{Kind: domain.EventLoadedMetadata, Duration: 120})
	eventually(t, func() bool { return p.Snapshot().Length == "2:00" }, "metadata never arrived")

	p.Seek(0.25)
	p.Seek(1.5)  // clamps to end
	p.Seek(-0.1) // clamps to start

	seeks := engine.seekCalls()
	if len(seeks) != 3 || seeks[0] != 30 || seeks[1] != 120 || seeks[2] != 0 {
		t.Fatalf("unexpected seek positions: %v", seeks)
	}

	// Seeking is legal while paused too
	p.Pause()
	p.Seek(0.5)
	if got := engine.seekCalls(); len(got) != 4 || got[3] != 60 {
		t.Fatalf("expected paused seek to 60, got %v", got)
	}
}

func TestTrackPlayer_StaleTimeUpdateAfterSupersession(t *testing.T) {
	reg := registry.New(zap.NewNop())
	a, engineA := newTrackFixture(t, reg)
	b, _ := newTrackFixture(t, reg)

	a.Play()
	engineA.emit(domain.EngineEvent{Kind: domain.EventLoadedMetadata, Duration: 100})
	eventually(t, func() bool { return a.Snapshot().Length == "1:40" }, "metadata never arrived")

	b.Play()

	// A late position report from A's engine arrives after B took over.
	// It may only touch display state, never resurrect playback.
	engineA.emit(domain.EngineEvent{Kind: domain.EventTimeUpdate, Position: 42, Duration: 100})
	eventually(t, func() bool { return a.Snapshot().Elapsed == "0:42" }, "stale update never arrived")

	if a.Snapshot().Playing {
		t.Fatal("stale time update resurrected playback")
	}
	if h, ok := reg.Active(); !ok || h.String() != b.ID() {
		t.Fatal("stale events must not disturb B's claim")
	}
}

func TestTrackPlayer_SourceFailure(t *testing.T) {
	reg := registry.New(zap.NewNop())
	p, engine := newTrackFixture(t, reg)

	p.Play()
	engine.emit(domain.EngineEvent{Kind: domain.EventError, Err: "failed to decode audio source: m4a decoding is not supported"})
	eventually(t, func() bool { return p.Snapshot().Failed }, "load failure never reached the display")

	snap := p.Snapshot()
	if snap.Playing {
		t.Fatal("a failed track must not look playable")
	}
	if _, ok := reg.Active(); ok {
		t.Fatal("a failed track must not keep the claim slot occupied")
	}

	// A later Play retries and clears the failure flag
	p.Play()
	snap = p.Snapshot()
	if snap.Failed || !snap.Playing {
		t.Fatalf("retry after failure must clear the flag, got %+v", snap)
	}
}

func TestTrackPlayer_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := registry.New(zap.NewNop())
	engine := newFakeEngine()
	p := NewTrackPlayer(zap.New(core), reg, engine, "/roughs/jam.mp3", "Jam")
	t.Cleanup(func() { _ = p.Close() })

	p.Play()
	p.Pause()

	if logs.FilterMessage("track playing").Len() != 1 {
		t.Error("Play logged no transition")
	}
	if logs.FilterMessage("track paused").Len() != 1 {
		t.Error("Pause logged no transition")
	}
}

func TestTrackPlayer_CallbackPublishes(t *testing.T) {
	reg := registry.New(zap.NewNop())
	p, engine := newTrackFixture(t, reg)

	updates := make(chan domain.TrackDisplay, 16)
	p.SetUpdateCallback(func(d domain.TrackDisplay) { updates <- d })

	p.Play()
	select {
	case d := <-updates:
		if !d.Playing {
			t.Errorf("first update after Play should show playing, got %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("Play published no update")
	}

	engine.emit(domain.EngineEvent{Kind: domain.EventTimeUpdate, Position: 1, Duration: 10})
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("time update published no update")
	}
}
