package streamsession

import "regexp"

var (
	strongStartRe = regexp.MustCompile(`(?i)\[INTERNAL_STATS\]|\[STREAM_SESSION\]\s*(CONNECTED|HEARTBEAT|APP_SESSION_READY)`)

	midStartRe = regexp.MustCompile(`(?i)configuring.*(with\s*format|codec)|using\s*codec|average\s*latency|connect[- ]request|pipeline\s*(started|ready)`)

	weakStartRe = regexp.MustCompile(`(?i)(launched|resumed).*session|\bSTART\b|\bRESUME\b`)

	endMarkerRe = regexp.MustCompile(`(?i)connection\s*terminated|stage\s*failed|\bSTOP_REQUEST\b|\bFAILED\b|\bTERMINATED\b`)

	activityRe = regexp.MustCompile(`(?i)Rx\s*\d|Rd\s*\d.*FPS`)
)

type markerHit struct {
	strongStart bool
	midStart    bool
	weakStart   bool
	end         bool
	activity    bool
}

func classifyLine(l Line) markerHit {
	text := l.Tag + ": " + l.Message
	strong := strongStartRe.MatchString(text)
	mid := midStartRe.MatchString(text)
	return markerHit{
		strongStart: strong,
		midStart:    mid,
		weakStart:   weakStartRe.MatchString(text),
		end:         endMarkerRe.MatchString(text),
		activity:    strong || mid || activityRe.MatchString(text),
	}
}

func (h markerHit) isStart() bool { return h.strongStart || h.midStart || h.weakStart }
