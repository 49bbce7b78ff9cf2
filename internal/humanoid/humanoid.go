// internal/humanoid/humanoid.go
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
)

// Humanoid turns abstract input actions into timed streams of primitive
// events that resemble a person at the keyboard and mouse.
type Humanoid struct {
	// mu protects everything below. Executor calls are made without holding it.
	mu            sync.Mutex
	baseConfig    config.HumanoidConfig
	dynamicConfig config.HumanoidConfig
	logger        *zap.Logger
	executor      Executor
	fatigueLevel  float64
	rng           *rand.Rand
	pink          *PinkNoiseGenerator
	noiseX        *perlin.Perlin
	noiseY        *perlin.Perlin
	noiseTime     float64
}

// New creates a Humanoid. A zero cfg.Seed seeds from the clock.
func New(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor) *Humanoid {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// Standard Perlin noise parameters.
	alpha, beta, n := 2.0, 2.0, int32(3)

	return &Humanoid{
		baseConfig:    cfg,
		dynamicConfig: cfg,
		logger:        logger.Named("humanoid"),
		executor:      executor,
		rng:           rng,
		pink:          NewPinkNoiseGenerator(rng, 12),
		noiseX:        perlin.NewPerlin(alpha, beta, n, seed),
		noiseY:        perlin.NewPerlin(alpha, beta, n, seed+1),
	}
}

// DefaultConfig returns the parameters registered as configuration defaults.
func DefaultConfig() config.HumanoidConfig {
	return config.HumanoidConfig{
		FittsA:                100,
		FittsB:                120,
		CurveVariance:         0.2,
		SnapDistance:          5,
		MinPathPoints:         10,
		MaxPathPoints:         60,
		PointDelayMinMs:       4,
		PointDelayMaxMs:       12,
		PerlinAmplitude:       2.5,
		GaussianStrength:      0.5,
		KeyDelayMeanMs:        55,
		KeyDelayStdDevMs:      15,
		KeyDelayMinMs:         30,
		KeyDelayMaxMs:         180,
		NgramSpeedup:          0.7,
		WordPauseMeanMs:       120,
		HesitationProbability: 0.04,
		HesitationMinMs:       250,
		HesitationMaxMs:       700,
		PreActionDelayMinMs:   60,
		PreActionDelayMaxMs:   180,
		ScrollGapMinMs:        30,
		ScrollGapMaxMs:        90,
		FatigueIncreaseRate:   0.005,
		FatigueRecoveryRate:   0.01,
	}
}

// NewTestHumanoid creates a deterministic Humanoid for tests.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	cfg := DefaultConfig()
	cfg.Seed = seed
	return New(cfg, zap.NewNop(), executor)
}

// Fatigue returns the current fatigue level in [0, 1].
func (h *Humanoid) Fatigue() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatigueLevel
}

// uniformMs draws a duration uniformly from [lo, hi] milliseconds.
func (h *Humanoid) uniformMs(lo, hi float64) time.Duration {
	h.mu.Lock()
	r := h.rng.Float64()
	h.mu.Unlock()
	return msDuration(lo + r*(hi-lo))
}

func msDuration(ms float64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// pause sleeps for d when it is positive and lets fatigue recover meanwhile.
func (h *Humanoid) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	h.recoverFatigue(d)
	return h.executor.Sleep(ctx, d)
}

// preActionDelay is the short reaction time before a discrete action.
func (h *Humanoid) preActionDelay(ctx context.Context) error {
	h.mu.Lock()
	cfg := h.dynamicConfig
	h.mu.Unlock()
	return h.pause(ctx, h.uniformMs(cfg.PreActionDelayMinMs, cfg.PreActionDelayMaxMs))
}

// applyFatigueEffects derives the dynamic parameters from the fatigue level.
// Caller holds h.mu.
func (h *Humanoid) applyFatigueEffects() {
	factor := 1.0 + h.fatigueLevel

	h.dynamicConfig.GaussianStrength = h.baseConfig.GaussianStrength * factor
	h.dynamicConfig.PerlinAmplitude = h.baseConfig.PerlinAmplitude * factor
	h.dynamicConfig.FittsA = h.baseConfig.FittsA * factor
	h.dynamicConfig.KeyDelayMeanMs = h.baseConfig.KeyDelayMeanMs * (1.0 + h.fatigueLevel*0.5)
	h.dynamicConfig.TypoRate = math.Min(0.25, h.baseConfig.TypoRate*(1.0+h.fatigueLevel*2.0))
}

// updateFatigue raises fatigue in proportion to the effort of an action.
func (h *Humanoid) updateFatigue(intensity float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel+h.baseConfig.FatigueIncreaseRate*intensity)
	h.applyFatigueEffects()
}

// recoverFatigue lowers fatigue during pauses.
func (h *Humanoid) recoverFatigue(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel-h.baseConfig.FatigueRecoveryRate*d.Seconds())
	h.applyFatigueEffects()
}
