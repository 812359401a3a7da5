package pinglog

import (
	"bufio"
	"io"
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	sentRe = regexp.MustCompile(`SENT\s*\(([\d.]+)s\)\s*ICMP.*seq=(\d+)`)
	rcvdRe = regexp.MustCompile(`RCVD\s*\(([\d.]+)s\)\s*ICMP.*seq=(\d+)`)
)

// HostParseOptions configures the host-side SENT/RCVD pairing pass.
type HostParseOptions struct {
	IntervalSec    float64
	CaptureStartTS time.Time
	Resolve        PhaseResolver
}

// HostSummary carries the (possibly synthesized) transmit/receive counters
// for a host-side ping log.
type HostSummary struct {
	Transmitted     int
	Received        int
	PacketLossPct   float64
	Synthesized     bool
}

// HostResult is the outcome of parsing one host-side (nping) ping log.
type HostResult struct {
	Samples          []Sample
	Summary          HostSummary
	SkippedNoTsCount int
}

type sentRecord struct {
	seq        int
	elapsedMs  float64
	hasElapsed bool
	epochMs    int64
	ts         time.Time
	line       string
	matched    bool
}

// ParseHostLog parses host-side nping SENT/RCVD output, pairing each RCVD
// with its best matching unmatched SENT.
func ParseHostLog(r io.Reader, opts HostParseOptions) HostResult {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	maxGap := math.Max(1000, opts.IntervalSec*1000*8)

	var sentList []sentRecord
	bySeq := map[int][]int{}
	var unmatchedOrder []int // indices into sentList, oldest first

	var samples []Sample
	var res HostResult

	removeFromUnmatched := func(idx int) {
		for i, u := range unmatchedOrder {
			if u == idx {
				unmatchedOrder = append(unmatchedOrder[:i], unmatchedOrder[i+1:]...)
				break
			}
		}
		seq := sentList[idx].seq
		q := bySeq[seq]
		for i, u := range q {
			if u == idx {
				bySeq[seq] = append(q[:i], q[i+1:]...)
				break
			}
		}
	}

	for sc.Scan() {
		line := sc.Text()

		tsMs, tsSource, payload, haveTs := resolveHostTimestamp(line, opts)

		if m := sentRe.FindStringSubmatch(payload); m != nil {
			if !haveTs {
				res.SkippedNoTsCount++
				continue
			}
			elapsed, _ := strconv.ParseFloat(m[1], 64)
			seq, _ := strconv.Atoi(m[2])
			idx := len(sentList)
			sentList = append(sentList, sentRecord{
				seq: seq, elapsedMs: elapsed * 1000, hasElapsed: true,
				epochMs: tsMs, ts: time.UnixMilli(tsMs).UTC(), line: line,
			})
			bySeq[seq] = append(bySeq[seq], idx)
			unmatchedOrder = append(unmatchedOrder, idx)
			_ = tsSource
			continue
		}

		if m := rcvdRe.FindStringSubmatch(payload); m != nil {
			if !haveTs {
				res.SkippedNoTsCount++
				continue
			}
			rElapsed, _ := strconv.ParseFloat(m[1], 64)
			seq, _ := strconv.Atoi(m[2])
			rElapsedMs := rElapsed * 1000
			rEpochMs := tsMs

			matchIdx := -1
			if cands := bySeq[seq]; len(cands) > 0 {
				cand := sentList[cands[0]]
				delta := hostDelta(cand, rElapsedMs, rEpochMs)
				if delta >= 0 && delta <= maxGap && delta <= 60000 {
					matchIdx = cands[0]
				}
			}
			if matchIdx < 0 {
				// Same-seq candidate missing or stale: fall back to the
				// time-nearest unmatched SENT across all sequences.
				best := -1
				bestAbs := math.MaxFloat64
				for _, idx := range unmatchedOrder {
					cand := sentList[idx]
					delta := hostDelta(cand, rElapsedMs, rEpochMs)
					if delta < 0 || delta > maxGap || delta > 60000 {
						continue
					}
					if math.Abs(delta) < bestAbs {
						bestAbs = math.Abs(delta)
						best = idx
					}
				}
				matchIdx = best
			}

			if matchIdx >= 0 {
				cand := sentList[matchIdx]
				delta := hostDelta(cand, rElapsedMs, rEpochMs)
				cand.matched = true
				sentList[matchIdx] = cand
				removeFromUnmatched(matchIdx)
				lat := delta
				samples = append(samples, Sample{
					TS: time.UnixMilli(rEpochMs).UTC(), Seq: &seq,
					Success: true, LatencyMs: &lat, Status: "reply",
					TSSource: LogPrefixEpoch, Line: line,
				})
			}
			continue
		}
	}

	for _, idx := range unmatchedOrder {
		cand := sentList[idx]
		seq := cand.seq
		samples = append(samples, Sample{
			TS: cand.ts, Seq: &seq, Success: false, Status: "no_reply",
			TSSource: LogPrefixEpoch, Line: cand.line,
		})
	}

	res.Samples = samples
	res.Summary = synthesizeHostSummary(sentList)
	applyPhase(res.Samples, opts.Resolve)
	return res
}

func hostDelta(cand sentRecord, rElapsedMs float64, rEpochMs int64) float64 {
	if cand.hasElapsed {
		return rElapsedMs - cand.elapsedMs
	}
	return float64(rEpochMs - cand.epochMs)
}

func resolveHostTimestamp(line string, opts HostParseOptions) (tsMs int64, source TSSource, payload string, ok bool) {
	if m := prefixRe.FindStringSubmatch(line); m != nil {
		epoch, _ := strconv.ParseInt(m[1], 10, 64)
		return epoch, LogPrefixEpoch, m[2], true
	}
	if m := bracketDR.FindStringSubmatch(line); m != nil {
		secs, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return int64(secs * 1000), PingD, m[2], true
		}
	}
	return 0, Unknown, line, false
}

func synthesizeHostSummary(sentList []sentRecord) HostSummary {
	transmitted := len(sentList)
	received := 0
	for _, s := range sentList {
		if s.matched {
			received++
		}
	}
	var lossPct float64
	if transmitted > 0 {
		lossPct = 100 * float64(transmitted-received) / float64(transmitted)
	}
	return HostSummary{Transmitted: transmitted, Received: received, PacketLossPct: lossPct, Synthesized: true}
}
