package servo

import (
	"encoding/json"
	"fmt"
	"os"
)

// ChannelCalibration is one entry of the JSON calibration overlay
// (channel -> {min_deg, max_deg, start_deg, stop_deg}).
type ChannelCalibration struct {
	MinDeg  float64 `json:"min_deg"`
	MaxDeg  float64 `json:"max_deg"`
	StartDeg float64 `json:"start_deg"`
	StopDeg  float64 `json:"stop_deg"`
}

// Calibration is the full channel->overlay mapping loaded at startup.
type Calibration map[int]ChannelCalibration

// Apply tightens cfg's angle limits to the overlay's bounds; the overlay
// may only narrow, never widen, the configured limits.
func (c ChannelCalibration) Apply(cfg *Config) {
	if c.MinDeg > cfg.MinAngleDeg && c.MinDeg != 0 {
		cfg.MinAngleDeg = c.MinDeg
	}
	if c.MaxDeg < cfg.MaxAngleDeg && c.MaxDeg > 0 {
		cfg.MaxAngleDeg = c.MaxDeg
	}
}

// LoadCalibration reads the JSON channel->overlay mapping from path.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("servo: read calibration %s: %w", path, err)
	}
	var raw map[string]ChannelCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("servo: parse calibration %s: %w", path, err)
	}
	cal := make(Calibration, len(raw))
	for k, v := range raw {
		var ch int
		if _, err := fmt.Sscanf(k, "%d", &ch); err != nil {
			return nil, fmt.Errorf("servo: calibration channel key %q: %w", k, err)
		}
		cal[ch] = v
	}
	return cal, nil
}

// StartAngle returns the overlay's launch neutral for channel, or ok=false
// if unset.
func (c Calibration) StartAngle(channel int) (float64, bool) {
	v, ok := c[channel]
	if !ok {
		return 0, false
	}
	return v.StartDeg, true
}

// StopAngle returns the overlay's shutdown neutral for channel, or ok=false
// if unset.
func (c Calibration) StopAngle(channel int) (float64, bool) {
	v, ok := c[channel]
	if !ok {
		return 0, false
	}
	return v.StopDeg, true
}
