package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/domain"
)

// The speaker can only be initialized once per process; every engine mixes
// into it at this rate.
const _mixRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Factory creates beep-backed engines sharing one speaker
type Factory struct {
	logger *zap.Logger
}

// NewFactory creates the engine factory
func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{logger: logger}
}

// NewEngine initializes the speaker on first use and returns a fresh engine
func (f *Factory) NewEngine() (domain.AudioEngine, error) {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(_mixRate, _mixRate.N(100*time.Millisecond))
	})
	if speakerErr != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", speakerErr)
	}
	return newEngine(f.logger, _mixRate), nil
}
