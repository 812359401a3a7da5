// Package logcat implements the threadtime-line classifier: a
// pattern-based mapping from one logcat line to zero or more system event
// types, gated by context requirements, plus a noise filter that drops three
// known-noisy line classes while counting why.
package logcat

import (
	"regexp"
	"strings"

	"github.com/netdiag/streamcheck/internal/events"
)

// Precompiled once at process start; immutable thereafter.
var (
	roamToken     = regexp.MustCompile(`(?i)\broam`)
	wifiContext   = regexp.MustCompile(`(?i)wifi|supplicant|wpa_supplicant`)
	scanToken     = regexp.MustCompile(`(?i)\bscan(ning)?\b`)
	disconnectTok = regexp.MustCompile(`(?i)\bdisconnect`)
	connectTok    = regexp.MustCompile(`(?i)\bconnect(ed)?\b`)
	dhcpTok       = regexp.MustCompile(`(?i)\bdhcp\b`)
	validationTok = regexp.MustCompile(`(?i)\bvalidat(ion|ed|ing)\b`)
	captiveTok    = regexp.MustCompile(`(?i)\bcaptive\b`)
	rssiTok       = regexp.MustCompile(`(?i)\brssi\b`)
	linkSpeedTok  = regexp.MustCompile(`(?i)link\s*speed`)
	networkCtx    = regexp.MustCompile(`(?i)wifi|connectivity|network|netd|tether`)

	dozeCtx    = regexp.MustCompile(`(?i)deviceidle|powermanager`)
	dozeToken  = regexp.MustCompile(`(?i)\bdoze\b`)
	idleToken  = regexp.MustCompile(`(?i)\bidle\b`)
	enterToken = regexp.MustCompile(`(?i)enter(ing)?|start(ed|ing)?|light idle|deep idle`)
	exitToken  = regexp.MustCompile(`(?i)exit(ing)?|end(ed|ing)?|stop(ped|ping)?`)

	batterySaverTok = regexp.MustCompile(`(?i)battery\s*saver`)
	onToken         = regexp.MustCompile(`(?i)\bon\b|enabled|\btrue\b`)
	offToken        = regexp.MustCompile(`(?i)\boff\b|disabled|\bfalse\b`)

	connDefaultSwitchTok    = regexp.MustCompile(`(?i)default\s*network.*switch|switch.*default\s*network`)
	connDefaultTransportTok = regexp.MustCompile(`(?i)default\s*network.*transport|transport.*chang`)

	// Non-wifi tags whose message may still contain "roam" harmlessly
	// (e.g. a car-navigation-style "roaming" subsystem unrelated to wifi).
	nonWifiRoamTags = map[string]bool{
		"TelephonyRoaming": true,
		"CarRoamingSvc":    true,
	}

	// Noise classes.
	dumpsysSelfNoise = regexp.MustCompile(`(?i)^### SNAPSHOT|dumpsys self-test`)
	binderInit       = regexp.MustCompile(`(?i)^(BinderProxy|Binder)$`)
	binderInitMsg    = regexp.MustCompile(`(?i)binder.*(init|thread pool started)`)
	preconnectPoll   = regexp.MustCompile(`(?i)poll(ing)? for connection|waiting for handshake`)
)

// Line is the minimal shape the classifier needs from a parsed threadtime
// line (decoupled from timeutil.ThreadtimeLine so tests can construct it
// directly).
type Line struct {
	Tag     string
	Message string
}

// Result is the classifier's verdict for one line.
type Result struct {
	Types       []events.Type
	WakelockHit bool // counted by the correlation engine's per-minute wakelock series, not stored as an Event
	Dropped     bool
	DropReason  string // "dumpsys_self_noise" | "binder_init" | "preconnect_polling"
}

var wakelockAcquire = regexp.MustCompile(`(?i)PowerManagerService.*acquire`)

// Classify assigns zero or more event types to a line, or flags it as noise.
func Classify(l Line) Result {
	text := l.Tag + ": " + l.Message

	if dumpsysSelfNoise.MatchString(l.Message) {
		return Result{Dropped: true, DropReason: "dumpsys_self_noise"}
	}
	if binderInit.MatchString(l.Tag) || binderInitMsg.MatchString(l.Message) {
		return Result{Dropped: true, DropReason: "binder_init"}
	}
	if preconnectPoll.MatchString(l.Message) {
		return Result{Dropped: true, DropReason: "preconnect_polling"}
	}

	var types []events.Type
	isWifiCtx := wifiContext.MatchString(text)
	isNetCtx := networkCtx.MatchString(text)
	isDozeCtx := dozeCtx.MatchString(text)

	if roamToken.MatchString(l.Message) && isWifiCtx && !nonWifiRoamTags[l.Tag] {
		types = append(types, events.Roam)
	}
	if scanToken.MatchString(l.Message) && isWifiCtx {
		types = append(types, events.Scan)
	}
	if rssiTok.MatchString(l.Message) && isWifiCtx {
		types = append(types, events.RSSIChange)
	}
	if linkSpeedTok.MatchString(l.Message) && isWifiCtx {
		types = append(types, events.LinkSpeedChange)
	}
	if isNetCtx {
		switch {
		case disconnectTok.MatchString(l.Message):
			types = append(types, events.Disconnect)
		case connectTok.MatchString(l.Message):
			types = append(types, events.Connect)
		}
		if dhcpTok.MatchString(l.Message) {
			types = append(types, events.DHCP)
		}
		if validationTok.MatchString(l.Message) {
			types = append(types, events.Validation)
		}
		if captiveTok.MatchString(l.Message) {
			types = append(types, events.CaptivePortal)
		}
		if connDefaultSwitchTok.MatchString(l.Message) {
			types = append(types, events.ConnDefaultSwitch)
		}
		if connDefaultTransportTok.MatchString(l.Message) {
			types = append(types, events.ConnDefaultTransportChg)
		}
	}

	if isDozeCtx {
		switch {
		case dozeToken.MatchString(l.Message) && enterToken.MatchString(l.Message):
			types = append(types, events.DozeEnter)
		case dozeToken.MatchString(l.Message) && exitToken.MatchString(l.Message):
			types = append(types, events.DozeExit)
		}
		switch {
		case idleToken.MatchString(l.Message) && enterToken.MatchString(l.Message):
			types = append(types, events.IdleEnter)
		case idleToken.MatchString(l.Message) && exitToken.MatchString(l.Message):
			types = append(types, events.IdleExit)
		}
		if batterySaverTok.MatchString(l.Message) {
			switch {
			case onToken.MatchString(l.Message):
				types = append(types, events.BatterySaverOn)
			case offToken.MatchString(l.Message):
				types = append(types, events.BatterySaverOff)
			}
		}
	}

	return Result{
		Types:       types,
		WakelockHit: wakelockAcquire.MatchString(text) && strings.Contains(strings.ToLower(l.Tag), "powermanager"),
	}
}
