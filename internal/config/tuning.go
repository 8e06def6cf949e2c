// Package config holds the tuning configuration for the gaze signal core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the root configuration for tuning parameters.
// All fields are pointers so that partial JSON configs are safe: fields
// omitted from the file retain their defaults via the Get* accessors.
type TuningConfig struct {
	// Blink detector params
	ClosureThreshold    *float64 `json:"closure_threshold,omitempty"`
	BlinkFrameThreshold *int     `json:"blink_frame_threshold,omitempty"`
	BlinkCooldown       *string  `json:"blink_cooldown,omitempty"` // duration string like "200ms"

	// Head pose / gaze estimator params
	GazeSensitivityX       *float64 `json:"gaze_sensitivity_x,omitempty"`
	GazeSensitivityY       *float64 `json:"gaze_sensitivity_y,omitempty"`
	HeadCorrectionGain     *float64 `json:"head_correction_gain,omitempty"`
	ExpectedInterpupillary *float64 `json:"expected_interpupillary,omitempty"`

	// Direction classifier params
	RollThreshold      *float64 `json:"roll_threshold,omitempty"`
	PitchThreshold     *float64 `json:"pitch_threshold,omitempty"`
	StabilityThreshold *int     `json:"stability_threshold,omitempty"`

	// Gaze smoothing params
	SmoothingWindow *int `json:"smoothing_window,omitempty"`

	// Calibration params
	SamplesPerPoint       *int     `json:"samples_per_point,omitempty"`
	SampleInterval        *string  `json:"sample_interval,omitempty"` // duration string like "100ms"
	MinPointGroups        *int     `json:"min_point_groups,omitempty"`
	MinTotalSamples       *int     `json:"min_total_samples,omitempty"`
	MinScale              *float64 `json:"min_scale,omitempty"`
	MaxScale              *float64 `json:"max_scale,omitempty"`
	RangeWideningFraction *float64 `json:"range_widening_fraction,omitempty"`

	// Viewport params
	ViewportWidth  *float64 `json:"viewport_width,omitempty"`
	ViewportHeight *float64 `json:"viewport_height,omitempty"`

	// Demo mode params
	DemoBlinkInterval *string `json:"demo_blink_interval,omitempty"` // duration string like "4s"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their defaults,
// so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ClosureThreshold != nil {
		if *c.ClosureThreshold < 0 || *c.ClosureThreshold > 1 {
			return fmt.Errorf("closure_threshold must be between 0 and 1, got %f", *c.ClosureThreshold)
		}
	}

	if c.BlinkFrameThreshold != nil && *c.BlinkFrameThreshold < 1 {
		return fmt.Errorf("blink_frame_threshold must be at least 1, got %d", *c.BlinkFrameThreshold)
	}

	if c.BlinkCooldown != nil && *c.BlinkCooldown != "" {
		if _, err := time.ParseDuration(*c.BlinkCooldown); err != nil {
			return fmt.Errorf("invalid blink_cooldown '%s': %w", *c.BlinkCooldown, err)
		}
	}

	if c.SampleInterval != nil && *c.SampleInterval != "" {
		if _, err := time.ParseDuration(*c.SampleInterval); err != nil {
			return fmt.Errorf("invalid sample_interval '%s': %w", *c.SampleInterval, err)
		}
	}

	if c.DemoBlinkInterval != nil && *c.DemoBlinkInterval != "" {
		if _, err := time.ParseDuration(*c.DemoBlinkInterval); err != nil {
			return fmt.Errorf("invalid demo_blink_interval '%s': %w", *c.DemoBlinkInterval, err)
		}
	}

	if c.StabilityThreshold != nil && *c.StabilityThreshold < 1 {
		return fmt.Errorf("stability_threshold must be at least 1, got %d", *c.StabilityThreshold)
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}

	if c.RangeWideningFraction != nil {
		if *c.RangeWideningFraction < 0 || *c.RangeWideningFraction > 1 {
			return fmt.Errorf("range_widening_fraction must be between 0 and 1, got %f", *c.RangeWideningFraction)
		}
	}

	if c.MinScale != nil && c.MaxScale != nil && *c.MinScale >= *c.MaxScale {
		return fmt.Errorf("min_scale %f must be below max_scale %f", *c.MinScale, *c.MaxScale)
	}

	return nil
}

// GetClosureThreshold returns the closure_threshold value or the default.
func (c *TuningConfig) GetClosureThreshold() float64 {
	if c.ClosureThreshold == nil {
		return 0.3
	}
	return *c.ClosureThreshold
}

// GetBlinkFrameThreshold returns the blink_frame_threshold value or the default.
func (c *TuningConfig) GetBlinkFrameThreshold() int {
	if c.BlinkFrameThreshold == nil {
		return 2
	}
	return *c.BlinkFrameThreshold
}

// GetBlinkCooldown parses and returns the BlinkCooldown as a time.Duration.
func (c *TuningConfig) GetBlinkCooldown() time.Duration {
	if c.BlinkCooldown == nil || *c.BlinkCooldown == "" {
		return 200 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.BlinkCooldown)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// GetGazeSensitivityX returns the gaze_sensitivity_x value or the default.
func (c *TuningConfig) GetGazeSensitivityX() float64 {
	if c.GazeSensitivityX == nil {
		return 2.0
	}
	return *c.GazeSensitivityX
}

// GetGazeSensitivityY returns the gaze_sensitivity_y value or the default.
func (c *TuningConfig) GetGazeSensitivityY() float64 {
	if c.GazeSensitivityY == nil {
		return 2.0
	}
	return *c.GazeSensitivityY
}

// GetHeadCorrectionGain returns the head_correction_gain value or the default.
func (c *TuningConfig) GetHeadCorrectionGain() float64 {
	if c.HeadCorrectionGain == nil {
		return 0.5
	}
	return *c.HeadCorrectionGain
}

// GetExpectedInterpupillary returns the expected_interpupillary value or the default.
// The value is the expected pupil separation as a fraction of frame width.
func (c *TuningConfig) GetExpectedInterpupillary() float64 {
	if c.ExpectedInterpupillary == nil {
		return 0.15
	}
	return *c.ExpectedInterpupillary
}

// GetRollThreshold returns the roll_threshold value or the default.
func (c *TuningConfig) GetRollThreshold() float64 {
	if c.RollThreshold == nil {
		return 0.015
	}
	return *c.RollThreshold
}

// GetPitchThreshold returns the pitch_threshold value or the default.
func (c *TuningConfig) GetPitchThreshold() float64 {
	if c.PitchThreshold == nil {
		return 0.1
	}
	return *c.PitchThreshold
}

// GetStabilityThreshold returns the stability_threshold value or the default.
func (c *TuningConfig) GetStabilityThreshold() int {
	if c.StabilityThreshold == nil {
		return 3
	}
	return *c.StabilityThreshold
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 10
	}
	return *c.SmoothingWindow
}

// GetSamplesPerPoint returns the samples_per_point value or the default.
func (c *TuningConfig) GetSamplesPerPoint() int {
	if c.SamplesPerPoint == nil {
		return 15
	}
	return *c.SamplesPerPoint
}

// GetSampleInterval parses and returns the SampleInterval as a time.Duration.
func (c *TuningConfig) GetSampleInterval() time.Duration {
	if c.SampleInterval == nil || *c.SampleInterval == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.SampleInterval)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetMinPointGroups returns the min_point_groups value or the default.
func (c *TuningConfig) GetMinPointGroups() int {
	if c.MinPointGroups == nil {
		return 3
	}
	return *c.MinPointGroups
}

// GetMinTotalSamples returns the min_total_samples value or the default.
func (c *TuningConfig) GetMinTotalSamples() int {
	if c.MinTotalSamples == nil {
		return 10
	}
	return *c.MinTotalSamples
}

// GetMinScale returns the min_scale value or the default.
func (c *TuningConfig) GetMinScale() float64 {
	if c.MinScale == nil {
		return 0.1
	}
	return *c.MinScale
}

// GetMaxScale returns the max_scale value or the default.
func (c *TuningConfig) GetMaxScale() float64 {
	if c.MaxScale == nil {
		return 50000
	}
	return *c.MaxScale
}

// GetRangeWideningFraction returns the range_widening_fraction value or the default.
// The observed calibration sample range is widened by this fraction on each
// side before clamping incoming gaze values.
func (c *TuningConfig) GetRangeWideningFraction() float64 {
	if c.RangeWideningFraction == nil {
		return 0.25
	}
	return *c.RangeWideningFraction
}

// GetViewportWidth returns the viewport_width value or the default.
func (c *TuningConfig) GetViewportWidth() float64 {
	if c.ViewportWidth == nil {
		return 1280
	}
	return *c.ViewportWidth
}

// GetViewportHeight returns the viewport_height value or the default.
func (c *TuningConfig) GetViewportHeight() float64 {
	if c.ViewportHeight == nil {
		return 720
	}
	return *c.ViewportHeight
}

// GetDemoBlinkInterval parses and returns the DemoBlinkInterval as a time.Duration.
func (c *TuningConfig) GetDemoBlinkInterval() time.Duration {
	if c.DemoBlinkInterval == nil || *c.DemoBlinkInterval == "" {
		return 4 * time.Second
	}
	d, err := time.ParseDuration(*c.DemoBlinkInterval)
	if err != nil {
		return 4 * time.Second
	}
	return d
}
