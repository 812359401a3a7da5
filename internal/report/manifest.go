package report

import (
	"encoding/json"
	"io"
	"time"
)

// Manifest is the JSON analysis manifest: provenance, session availability,
// line/event/drop counts, window counts, and the interval, periodicity,
// alignment, cause and bidirectional results. It does not carry the
// ping-in-session findings, the INTERNAL_STATS summary table, the window
// lists, the cause evidence rows, or the bidirectional coverage and Δ
// figures that the Markdown shows.
type Manifest struct {
	GeneratedAtIso string `json:"generatedAtIso"`
	Provenance     struct {
		Mode                  string  `json:"mode"`
		NoisePolicy           string  `json:"noisePolicy"`
		NoValidSessionPolicy  string  `json:"noValidSessionPolicy"`
		PreBufferSec          float64 `json:"preBufferSec"`
		PostBufferSec         float64 `json:"postBufferSec"`
		ClockSkewToleranceSec float64 `json:"clockSkewToleranceSec"`
		Degraded              bool    `json:"degraded"`
	} `json:"provenance"`
	Availability struct {
		HasValidSession bool   `json:"hasValidSession"`
		NoValidReason   string `json:"noValidReason,omitempty"`
	} `json:"availability"`
	Counts struct {
		LogcatLinesTotal     int            `json:"logcatLinesTotal"`
		LogcatLinesSession   int            `json:"logcatLinesSession"`
		EventsTotal          int            `json:"eventsTotal"`
		EventsSession        int            `json:"eventsSession"`
		EventsOutsideSession int            `json:"eventsOutsideSession"`
		PerType              map[string]int `json:"perType"`
		DropReasons          map[string]int `json:"dropReasons"`
	} `json:"counts"`
	StreamWindows struct {
		Raw       int `json:"raw"`
		Effective int `json:"effective"`
	} `json:"streamWindows"`
	Intervals   []intervalJSON    `json:"intervals"`
	Periodicity []periodicityJSON `json:"periodicity"`
	Alignments  []alignmentJSON   `json:"alignments"`
	Causes      []causeJSON       `json:"causes"`
	Bidirectional bidirectionalJSON `json:"bidirectional"`
	Files       map[string]string `json:"files"`
}

type intervalJSON struct {
	Type  string  `json:"type"`
	Count int     `json:"count"`
	P25   float64 `json:"p25Sec"`
	P50   float64 `json:"p50Sec"`
	P75   float64 `json:"p75Sec"`
}

type periodicityJSON struct {
	Type          string  `json:"type"`
	BestPeriodSec float64 `json:"bestPeriodSec"`
	BestRatio     float64 `json:"bestRatio"`
	Score         float64 `json:"score"`
}

type alignmentJSON struct {
	Type      string  `json:"type"`
	Pre       int     `json:"pre"`
	Post      int     `json:"post"`
	Ratio     float64 `json:"ratio"`
	Increased bool    `json:"increased"`
}

type causeJSON struct {
	Cause      string  `json:"cause"`
	Overlap    float64 `json:"overlap"`
	LeadLag    float64 `json:"leadLag"`
	Intensity  float64 `json:"intensity"`
	Score      float64 `json:"score"`
	Level      string  `json:"level"`
	Confidence string  `json:"confidence"`
}

type bidirectionalJSON struct {
	Direction      string  `json:"direction"`
	Confidence     string  `json:"confidence"`
	PairedCount    int     `json:"pairedCount"`
	UnpairedDevice int     `json:"unpairedDevice"`
	UnpairedHost   int     `json:"unpairedHost"`
	BurstOverlap   float64 `json:"burstOverlap"`
}

// BuildManifest translates a Bundle into the JSON manifest shape.
func BuildManifest(b Bundle, generatedAt time.Time, files map[string]string) Manifest {
	var m Manifest
	m.GeneratedAtIso = generatedAt.UTC().Format(time.RFC3339Nano)
	m.Provenance.Mode = string(b.Provenance.Mode)
	m.Provenance.NoisePolicy = string(b.Provenance.NoisePolicy)
	m.Provenance.NoValidSessionPolicy = string(b.Provenance.NoValidSessionPolicy)
	m.Provenance.PreBufferSec = b.Provenance.PreBufferSec
	m.Provenance.PostBufferSec = b.Provenance.PostBufferSec
	m.Provenance.ClockSkewToleranceSec = b.Provenance.ClockSkewToleranceSec
	m.Provenance.Degraded = b.Provenance.Degraded

	m.Availability.HasValidSession = b.HasValidSession

	m.Counts.LogcatLinesTotal = b.Counters.LogcatLinesTotal
	m.Counts.LogcatLinesSession = b.Counters.LogcatLinesSession
	m.Counts.EventsTotal = b.Counters.EventsTotal
	m.Counts.EventsSession = b.Counters.EventsSession
	m.Counts.EventsOutsideSession = b.Counters.EventsOutsideSession
	m.Counts.PerType = map[string]int{}
	for t, c := range b.Counters.PerTypeCounts {
		m.Counts.PerType[string(t)] = c
	}
	m.Counts.DropReasons = map[string]int{}
	for r, c := range b.Counters.DropReasons {
		m.Counts.DropReasons[r] = c
	}

	m.StreamWindows.Raw = len(b.RawWindows)
	m.StreamWindows.Effective = len(b.EffectiveWindows)

	for _, s := range b.Intervals {
		m.Intervals = append(m.Intervals, intervalJSON{string(s.Type), s.Count, s.P25, s.P50, s.P75})
	}
	for _, p := range b.Periodicity {
		m.Periodicity = append(m.Periodicity, periodicityJSON{string(p.Type), p.BestPeriodSec, p.BestRatio, p.Score})
	}
	for _, a := range b.Alignments {
		m.Alignments = append(m.Alignments, alignmentJSON{string(a.Type), a.Pre, a.Post, a.Ratio, a.Increased})
	}
	for _, c := range b.Causes {
		m.Causes = append(m.Causes, causeJSON{
			string(c.Cause), c.Overlap, c.LeadLag, c.Intensity, c.Score, string(c.Level), string(c.Confidence),
		})
	}
	bi := b.Bidirectional
	m.Bidirectional = bidirectionalJSON{
		string(bi.Direction), string(bi.Confidence), bi.PairedCount, bi.UnpairedDevice, bi.UnpairedHost, bi.BurstOverlap,
	}
	m.Files = files
	return m
}

// WriteManifest encodes the manifest as indented JSON.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
