package control

import "fmt"

// PriorityLevel is a normalized scheduling priority tier. Each level snaps to
// the nearest valid native value through the per-platform tables below.
type PriorityLevel int

const (
	PriorityLow PriorityLevel = iota
	PriorityBelowNormal
	PriorityNormal
	PriorityAboveNormal
	PriorityHigh
	PriorityRealtime
)

var levelNames = map[PriorityLevel]string{
	PriorityLow:         "low",
	PriorityBelowNormal: "below_normal",
	PriorityNormal:      "normal",
	PriorityAboveNormal: "above_normal",
	PriorityHigh:        "high",
	PriorityRealtime:    "realtime",
}

func (l PriorityLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(l))
}

// Valid reports whether l is one of the defined tiers.
func (l PriorityLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLevel converts the wire/config name of a tier back to its PriorityLevel.
func ParseLevel(s string) (PriorityLevel, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return PriorityNormal, fmt.Errorf("unknown priority level %q", s)
}

// Levels returns all tiers ordered from lowest to highest priority.
func Levels() []PriorityLevel {
	return []PriorityLevel{
		PriorityLow,
		PriorityBelowNormal,
		PriorityNormal,
		PriorityAboveNormal,
		PriorityHigh,
		PriorityRealtime,
	}
}

// unixNiceness maps tiers to niceness values (lower niceness means higher
// scheduling priority). Realtime approximates with the strongest niceness the
// kernel exposes without touching the realtime scheduling classes.
var unixNiceness = map[PriorityLevel]int{
	PriorityLow:         19,
	PriorityBelowNormal: 10,
	PriorityNormal:      0,
	PriorityAboveNormal: -5,
	PriorityHigh:        -10,
	PriorityRealtime:    -20,
}

// windowsPriorityClass maps tiers to Windows priority-class values. Raw
// constants, so this table stays buildable and testable on every platform.
var windowsPriorityClass = map[PriorityLevel]uint32{
	PriorityLow:         0x00000040, // IDLE_PRIORITY_CLASS
	PriorityBelowNormal: 0x00004000, // BELOW_NORMAL_PRIORITY_CLASS
	PriorityNormal:      0x00000020, // NORMAL_PRIORITY_CLASS
	PriorityAboveNormal: 0x00008000, // ABOVE_NORMAL_PRIORITY_CLASS
	PriorityHigh:        0x00000080, // HIGH_PRIORITY_CLASS
	PriorityRealtime:    0x00000100, // REALTIME_PRIORITY_CLASS
}

// LevelFromNiceness buckets a unix niceness into the nearest tier.
func LevelFromNiceness(nice int) PriorityLevel {
	switch {
	case nice >= 15:
		return PriorityLow
	case nice >= 5:
		return PriorityBelowNormal
	case nice > -3:
		return PriorityNormal
	case nice > -8:
		return PriorityAboveNormal
	case nice > -15:
		return PriorityHigh
	default:
		return PriorityRealtime
	}
}

// LevelFromPriorityClass buckets a Windows priority class into its tier.
func LevelFromPriorityClass(class uint32) PriorityLevel {
	for level, v := range windowsPriorityClass {
		if v == class {
			return level
		}
	}
	return PriorityNormal
}
