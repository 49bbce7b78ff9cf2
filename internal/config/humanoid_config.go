// File: internal/config/humanoid_config.go
// This file defines the HumanoidConfig struct, which contains the tunable
// parameters of the human-like input model: cursor trajectory shape and timing,
// typing rhythm, pre-action delays and the fatigue model.
package config

import (
	"errors"

	"github.com/spf13/viper"
)

// HumanoidConfig holds the parameters of the input synthesis model.
// All *Ms fields are milliseconds.
type HumanoidConfig struct {
	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed" yaml:"seed"`

	// -- Cursor movement --
	FittsA           float64 `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB           float64 `mapstructure:"fitts_b" yaml:"fitts_b"`
	CurveVariance    float64 `mapstructure:"curve_variance" yaml:"curve_variance"`
	SnapDistance     float64 `mapstructure:"snap_distance" yaml:"snap_distance"`
	MinPathPoints    int     `mapstructure:"min_path_points" yaml:"min_path_points"`
	MaxPathPoints    int     `mapstructure:"max_path_points" yaml:"max_path_points"`
	PointDelayMinMs  float64 `mapstructure:"point_delay_min_ms" yaml:"point_delay_min_ms"`
	PointDelayMaxMs  float64 `mapstructure:"point_delay_max_ms" yaml:"point_delay_max_ms"`
	PerlinAmplitude  float64 `mapstructure:"perlin_amplitude" yaml:"perlin_amplitude"`
	GaussianStrength float64 `mapstructure:"gaussian_strength" yaml:"gaussian_strength"`

	// -- Typing --
	KeyDelayMeanMs        float64 `mapstructure:"key_delay_mean_ms" yaml:"key_delay_mean_ms"`
	KeyDelayStdDevMs      float64 `mapstructure:"key_delay_std_dev_ms" yaml:"key_delay_std_dev_ms"`
	KeyDelayMinMs         float64 `mapstructure:"key_delay_min_ms" yaml:"key_delay_min_ms"`
	KeyDelayMaxMs         float64 `mapstructure:"key_delay_max_ms" yaml:"key_delay_max_ms"`
	NgramSpeedup          float64 `mapstructure:"ngram_speedup" yaml:"ngram_speedup"`
	WordPauseMeanMs       float64 `mapstructure:"word_pause_mean_ms" yaml:"word_pause_mean_ms"`
	HesitationProbability float64 `mapstructure:"hesitation_probability" yaml:"hesitation_probability"`
	HesitationMinMs       float64 `mapstructure:"hesitation_min_ms" yaml:"hesitation_min_ms"`
	HesitationMaxMs       float64 `mapstructure:"hesitation_max_ms" yaml:"hesitation_max_ms"`
	TypoRate              float64 `mapstructure:"typo_rate" yaml:"typo_rate"`

	// -- Discrete actions --
	PreActionDelayMinMs float64 `mapstructure:"pre_action_delay_min_ms" yaml:"pre_action_delay_min_ms"`
	PreActionDelayMaxMs float64 `mapstructure:"pre_action_delay_max_ms" yaml:"pre_action_delay_max_ms"`
	ScrollGapMinMs      float64 `mapstructure:"scroll_gap_min_ms" yaml:"scroll_gap_min_ms"`
	ScrollGapMaxMs      float64 `mapstructure:"scroll_gap_max_ms" yaml:"scroll_gap_max_ms"`

	// -- Fatigue --
	FatigueIncreaseRate float64 `mapstructure:"fatigue_increase_rate" yaml:"fatigue_increase_rate"`
	FatigueRecoveryRate float64 `mapstructure:"fatigue_recovery_rate" yaml:"fatigue_recovery_rate"`
}

// setHumanoidDefaults registers the humanoid defaults. The values describe an
// unhurried but competent user.
func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("humanoid.seed", 0)

	v.SetDefault("humanoid.fitts_a", 100.0)
	v.SetDefault("humanoid.fitts_b", 120.0)
	v.SetDefault("humanoid.curve_variance", 0.2)
	v.SetDefault("humanoid.snap_distance", 5.0)
	v.SetDefault("humanoid.min_path_points", 10)
	v.SetDefault("humanoid.max_path_points", 60)
	v.SetDefault("humanoid.point_delay_min_ms", 4.0)
	v.SetDefault("humanoid.point_delay_max_ms", 12.0)
	v.SetDefault("humanoid.perlin_amplitude", 2.5)
	v.SetDefault("humanoid.gaussian_strength", 0.5)

	v.SetDefault("humanoid.key_delay_mean_ms", 55.0)
	v.SetDefault("humanoid.key_delay_std_dev_ms", 15.0)
	v.SetDefault("humanoid.key_delay_min_ms", 30.0)
	v.SetDefault("humanoid.key_delay_max_ms", 180.0)
	v.SetDefault("humanoid.ngram_speedup", 0.7)
	v.SetDefault("humanoid.word_pause_mean_ms", 120.0)
	v.SetDefault("humanoid.hesitation_probability", 0.04)
	v.SetDefault("humanoid.hesitation_min_ms", 250.0)
	v.SetDefault("humanoid.hesitation_max_ms", 700.0)
	v.SetDefault("humanoid.typo_rate", 0.0)

	v.SetDefault("humanoid.pre_action_delay_min_ms", 60.0)
	v.SetDefault("humanoid.pre_action_delay_max_ms", 180.0)
	v.SetDefault("humanoid.scroll_gap_min_ms", 30.0)
	v.SetDefault("humanoid.scroll_gap_max_ms", 90.0)

	v.SetDefault("humanoid.fatigue_increase_rate", 0.005)
	v.SetDefault("humanoid.fatigue_recovery_rate", 0.01)
}

// Validate rejects parameter combinations the model cannot sample from.
func (h HumanoidConfig) Validate() error {
	var errs []error
	if h.MinPathPoints < 2 || h.MaxPathPoints < h.MinPathPoints {
		errs = append(errs, errors.New("humanoid: path points must satisfy 2 <= min_path_points <= max_path_points"))
	}
	if h.PointDelayMinMs < 0 || h.PointDelayMaxMs < h.PointDelayMinMs {
		errs = append(errs, errors.New("humanoid: point delay range is invalid"))
	}
	if h.KeyDelayMinMs < 0 || h.KeyDelayMaxMs < h.KeyDelayMinMs {
		errs = append(errs, errors.New("humanoid: key delay range is invalid"))
	}
	if h.HesitationProbability < 0 || h.HesitationProbability > 1 {
		errs = append(errs, errors.New("humanoid: hesitation_probability must be between 0 and 1"))
	}
	if h.HesitationMaxMs < h.HesitationMinMs {
		errs = append(errs, errors.New("humanoid: hesitation range is invalid"))
	}
	if h.TypoRate < 0 || h.TypoRate > 0.25 {
		errs = append(errs, errors.New("humanoid: typo_rate must be between 0 and 0.25"))
	}
	if h.PreActionDelayMinMs < 0 || h.PreActionDelayMaxMs < h.PreActionDelayMinMs {
		errs = append(errs, errors.New("humanoid: pre-action delay range is invalid"))
	}
	if h.ScrollGapMinMs < 0 || h.ScrollGapMaxMs < h.ScrollGapMinMs {
		errs = append(errs, errors.New("humanoid: scroll gap range is invalid"))
	}
	return errors.Join(errs...)
}
