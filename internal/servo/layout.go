package servo

import "github.com/coglet/coglet-core/internal/pwm"

// Handle names for the fixed mechanical layout (data model §3).
const (
	EYL = "EYL" // eye left
	EYR = "EYR" // eye right
	LID = "LID" // eyelid
	NPT = "NPT" // neck pitch
	NRL = "NRL" // neck roll (head roll / yaw stand-in)
	MOU = "MOU" // mouth
	EAL = "EAL" // ear left
	EAR = "EAR" // ear right
	LWH = "LWH" // left wheel
	RWH = "RWH" // right wheel
)

// defaultLayout maps each handle to its channel and default Config, used
// when no richer per-channel override is supplied by the YAML config file.
var defaultLayout = []struct {
	Name    string
	Channel int
	Config  Config
}{
	{EYL, 0, defaultEyeConfig()},
	{EYR, 1, defaultEyeConfig()},
	{LID, 2, defaultLidConfig()},
	{NPT, 3, defaultPitchConfig()},
	{NRL, 4, defaultRollConfig()},
	{MOU, 5, defaultMouthConfig()},
	{EAL, 6, defaultEarConfig()},
	{EAR, 7, defaultEarConfig()},
	{LWH, 8, defaultWheelConfig()},
	{RWH, 9, defaultWheelConfig()},
}

func defaultEyeConfig() Config {
	return Config{MinAngleDeg: 60, MaxAngleDeg: 120, MinPulseUs: 1000, MaxPulseUs: 2000,
		MaxSpeedDegS: 400, MaxAccelDegS2: 1200, DeadzoneDeg: 0.5, NeutralDeg: 90, PWMFreqHz: 50}
}

func defaultLidConfig() Config {
	return Config{MinAngleDeg: 30, MaxAngleDeg: 150, MinPulseUs: 600, MaxPulseUs: 2400,
		MaxSpeedDegS: 900, MaxAccelDegS2: 3000, DeadzoneDeg: 1, NeutralDeg: 90, PWMFreqHz: 50}
}

func defaultPitchConfig() Config {
	return Config{MinAngleDeg: 60, MaxAngleDeg: 120, MinPulseUs: 1000, MaxPulseUs: 2000,
		MaxSpeedDegS: 200, MaxAccelDegS2: 600, DeadzoneDeg: 1, NeutralDeg: 90, PWMFreqHz: 50}
}

func defaultRollConfig() Config {
	return Config{MinAngleDeg: 60, MaxAngleDeg: 120, MinPulseUs: 1000, MaxPulseUs: 2000,
		MaxSpeedDegS: 200, MaxAccelDegS2: 600, DeadzoneDeg: 1, NeutralDeg: 90, PWMFreqHz: 50}
}

func defaultMouthConfig() Config {
	return Config{MinAngleDeg: 60, MaxAngleDeg: 120, MinPulseUs: 1000, MaxPulseUs: 2000,
		MaxSpeedDegS: 600, MaxAccelDegS2: 2000, DeadzoneDeg: 1, NeutralDeg: 70, PWMFreqHz: 50}
}

func defaultEarConfig() Config {
	return Config{MinAngleDeg: 60, MaxAngleDeg: 120, MinPulseUs: 1000, MaxPulseUs: 2000,
		MaxSpeedDegS: 300, MaxAccelDegS2: 900, DeadzoneDeg: 1, NeutralDeg: 90, PWMFreqHz: 50}
}

func defaultWheelConfig() Config {
	return Config{MinAngleDeg: 0, MaxAngleDeg: 180, MinPulseUs: 1000, MaxPulseUs: 2000,
		MaxSpeedDegS: 300, MaxAccelDegS2: 900, DeadzoneDeg: 0.5, NeutralDeg: 90, PWMFreqHz: 50}
}

// BuildRegistry constructs servos for every entry in the fixed layout,
// applies the calibration overlay, registers them, and freezes the result.
func BuildRegistry(bus *pwm.Bus, overlay Calibration) (*Registry, error) {
	r := NewRegistry()
	for _, entry := range defaultLayout {
		cfg := entry.Config
		if ch, ok := overlay[entry.Channel]; ok {
			ch.Apply(&cfg)
		}
		s := New(bus, entry.Channel, cfg)
		if err := r.Register(entry.Name, entry.Channel, s); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}
