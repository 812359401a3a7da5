// Package dumpsys implements the per-service dumpsys transition detector:
// each service has a typed parser over a snapshot body, and transitions
// are emitted by diffing consecutive OK snapshots.
package dumpsys

import (
	"regexp"
	"time"

	"github.com/netdiag/streamcheck/internal/events"
)

// WifiState is the fields tracked from a wifi dumpsys snapshot body.
type WifiState struct {
	WifiOn    bool
	IfaceUp   bool
	RoamStamp string // raw text of the latest CMD_TRIGGER_ROAMING_RESULT line; any change means a new roam
}

var (
	wifiEnabledText   = regexp.MustCompile(`(?i)Wi-?Fi is enabled`)
	wifiDisabledText  = regexp.MustCompile(`(?i)Wi-?Fi is disabled`)
	wifiStateNumRe    = regexp.MustCompile(`(?i)WifiState\s*[:=]\s*(\d+)`)
	wifiModeEnabledRe = regexp.MustCompile(`(?i)mode\s*[:=]\s*(ENABLED|CONNECTED|SCANNING)`)
	ifaceUpRe         = regexp.MustCompile(`(?i)\bwlan0\b.*\bUP\b|interface.*state.*UP`)
	ifaceDownRe       = regexp.MustCompile(`(?i)\bwlan0\b.*\bDOWN\b|interface.*state.*DOWN`)
	roamResultRe      = regexp.MustCompile(`(?i)CMD_TRIGGER_ROAMING_RESULT.*$`)
)

// ParseWifi extracts the tracked wifi state from one snapshot body.
func ParseWifi(body string) WifiState {
	var s WifiState
	switch {
	case wifiEnabledText.MatchString(body):
		s.WifiOn = true
	case wifiDisabledText.MatchString(body):
		s.WifiOn = false
	case wifiModeEnabledRe.MatchString(body):
		s.WifiOn = true
	default:
		if m := wifiStateNumRe.FindStringSubmatch(body); m != nil {
			// WifiState numeric codes: 1=DISABLED, 2=DISABLING, 3=ENABLING, 4=ENABLED
			s.WifiOn = m[1] == "4"
		}
	}

	switch {
	case ifaceUpRe.MatchString(body):
		s.IfaceUp = true
	case ifaceDownRe.MatchString(body):
		s.IfaceUp = false
	}

	if m := roamResultRe.FindString(body); m != "" {
		s.RoamStamp = m
	}
	return s
}

// DiffWifi compares consecutive OK wifi snapshots and emits transitions,
// timestamped with the current snapshot's hostTs.
func DiffWifi(prev, cur WifiState, hasPrev bool, hostTS time.Time) []events.Event {
	var out []events.Event
	emit := func(t events.Type) {
		out = append(out, events.Event{Type: t, TS: hostTS, Source: "wifi"})
	}

	if !hasPrev {
		return nil
	}
	if !prev.WifiOn && cur.WifiOn {
		emit(events.WifiOn)
	} else if prev.WifiOn && !cur.WifiOn {
		emit(events.WifiOff)
	}
	if !prev.IfaceUp && cur.IfaceUp {
		emit(events.WifiIfaceUp)
	} else if prev.IfaceUp && !cur.IfaceUp {
		emit(events.WifiIfaceDown)
	}
	if cur.RoamStamp != "" && cur.RoamStamp != prev.RoamStamp {
		emit(events.Roam)
	}
	return out
}
