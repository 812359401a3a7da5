package dumpsys

import (
	"regexp"
	"strings"
	"time"

	"github.com/netdiag/streamcheck/internal/events"
)

// IdleState is the deviceidle dumpsys parser's tracked fields.
type IdleState struct {
	DozeOn bool
	IdleOn bool
}

// PowerState is the power dumpsys parser's tracked fields.
type PowerState struct {
	BatterySaverOn bool
}

var (
	dozeBoolRe  = regexp.MustCompile(`(?i)mDeep(Enabled|Idle)\s*[:=]\s*(true|false)`)
	dozeStateRe = regexp.MustCompile(`(?i)mState\s*[:=]\s*(\w+)`)
	idleBoolRe  = regexp.MustCompile(`(?i)mLightEnabled\s*[:=]\s*(true|false)`)

	saverBoolRe = regexp.MustCompile(`(?i)mIsPowerSaveMode\s*[:=]\s*(true|false)`)
	saverTextRe = regexp.MustCompile(`(?i)battery saver:?\s*(on|off|enabled|disabled)`)
)

var deepStateTokens = map[string]bool{
	"IDLE": true, "SENSING": true, "LOCATING": true, "STATIONARY": true,
}

// ParseDeviceIdle extracts doze/idle state, preferring an explicit boolean
// field and falling back to a state-token heuristic.
func ParseDeviceIdle(body string) IdleState {
	var s IdleState
	if m := dozeBoolRe.FindStringSubmatch(body); m != nil {
		s.DozeOn = strings.EqualFold(m[2], "true")
	} else if m := dozeStateRe.FindStringSubmatch(body); m != nil {
		s.DozeOn = deepStateTokens[strings.ToUpper(m[1])]
	}
	if m := idleBoolRe.FindStringSubmatch(body); m != nil {
		s.IdleOn = strings.EqualFold(m[1], "true")
	}
	return s
}

// ParsePower extracts battery-saver state from a power dumpsys snapshot.
func ParsePower(body string) PowerState {
	var s PowerState
	if m := saverBoolRe.FindStringSubmatch(body); m != nil {
		s.BatterySaverOn = strings.EqualFold(m[1], "true")
	} else if m := saverTextRe.FindStringSubmatch(body); m != nil {
		v := strings.ToLower(m[1])
		s.BatterySaverOn = v == "on" || v == "enabled"
	}
	return s
}

// DiffIdle emits the four doze/idle enter/exit transitions.
func DiffIdle(prev, cur IdleState, hasPrev bool, hostTS time.Time) []events.Event {
	if !hasPrev {
		return nil
	}
	var out []events.Event
	emit := func(t events.Type) { out = append(out, events.Event{Type: t, TS: hostTS, Source: "deviceidle"}) }

	if !prev.DozeOn && cur.DozeOn {
		emit(events.DozeEnter)
	} else if prev.DozeOn && !cur.DozeOn {
		emit(events.DozeExit)
	}
	if !prev.IdleOn && cur.IdleOn {
		emit(events.IdleEnter)
	} else if prev.IdleOn && !cur.IdleOn {
		emit(events.IdleExit)
	}
	return out
}

// DiffPower emits battery-saver on/off transitions.
func DiffPower(prev, cur PowerState, hasPrev bool, hostTS time.Time) []events.Event {
	if !hasPrev {
		return nil
	}
	if !prev.BatterySaverOn && cur.BatterySaverOn {
		return []events.Event{{Type: events.BatterySaverOn, TS: hostTS, Source: "power"}}
	}
	if prev.BatterySaverOn && !cur.BatterySaverOn {
		return []events.Event{{Type: events.BatterySaverOff, TS: hostTS, Source: "power"}}
	}
	return nil
}
