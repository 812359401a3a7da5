package pinglog

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"time"
)

var (
	prefixRe  = regexp.MustCompile(`^\[ts_local=[^\]]+\]\[epoch_ms=(\d+)\]\[source=(?:device_side_ping|host_side_ping)\]\s?(.*)$`)
	bracketDR = regexp.MustCompile(`^\[(\d+(?:\.\d+)?)\]\s?(.*)$`)
	icmpSeqRe = regexp.MustCompile(`icmp_seq=(\d+)`)
	timeMsRe  = regexp.MustCompile(`time[=<]?\s*([\d.]+)\s*ms`)
)

// DeviceParseOptions configures timestamp fallback resolution for device-side
// ping lines.
type DeviceParseOptions struct {
	CaptureStartTS time.Time
	IntervalSec    float64
	Resolve        PhaseResolver
}

// DeviceResult is the outcome of parsing one device-side ping log.
type DeviceResult struct {
	Samples          []Sample
	SkippedNoTsCount int
}

// ParseDeviceLog parses device-local `ping` output (threadtime-prefixed or
// raw `ping -D`),
func ParseDeviceLog(r io.Reader, opts DeviceParseOptions) DeviceResult {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var res DeviceResult
	for sc.Scan() {
		line := sc.Text()
		if s, counted, ok := parseDeviceLine(line, opts); ok {
			res.Samples = append(res.Samples, s)
		} else if counted {
			res.SkippedNoTsCount++
		}
	}
	applyPhase(res.Samples, opts.Resolve)
	return res
}

// parseDeviceLine parses one line. ok=true means a sample was produced.
// counted=true (with ok=false) means the line was a recognizable ping
// payload whose timestamp could not be resolved;
// counted=false with ok=false means the line wasn't a ping payload at all
// and is silently skipped.
func parseDeviceLine(line string, opts DeviceParseOptions) (s Sample, counted, ok bool) {
	payload := line
	var tsMs int64
	var tsSource TSSource

	if m := prefixRe.FindStringSubmatch(line); m != nil {
		epoch, _ := strconv.ParseInt(m[1], 10, 64)
		tsMs = epoch
		tsSource = LogPrefixEpoch
		payload = m[2]
	} else if m := bracketDR.FindStringSubmatch(line); m != nil {
		secs, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			tsMs = int64(secs * 1000)
			tsSource = PingD
			payload = m[2]
		}
	}

	seqMatch := icmpSeqRe.FindStringSubmatch(payload)
	if seqMatch == nil {
		// Not a recognizable ping payload at all.
		return Sample{}, false, false
	}
	seq, _ := strconv.Atoi(seqMatch[1])

	if tsSource == "" {
		// Fallback 3: estimate from capture-start anchor + sequence number.
		if !opts.CaptureStartTS.IsZero() && opts.IntervalSec > 0 {
			tsMs = opts.CaptureStartTS.UnixMilli() + int64((float64(seq-1))*opts.IntervalSec*1000)
			tsSource = SeqEstimated
		} else {
			return Sample{}, true, false
		}
	}

	s = Sample{
		TS:       time.UnixMilli(tsMs).UTC(),
		Seq:      &seq,
		TSSource: tsSource,
		Line:     line,
	}
	if tm := timeMsRe.FindStringSubmatch(payload); tm != nil {
		lat, _ := strconv.ParseFloat(tm[1], 64)
		s.Success = true
		s.LatencyMs = &lat
		s.Status = "reply"
	} else {
		s.Success = false
		s.Status = "no_reply"
	}
	return s, true, true
}
