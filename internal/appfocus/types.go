// Package appfocus implements the app-focus extractor: it classifies
// threadtime lines believed to belong to the streaming client into
// stream/preconnect/post/unknown phases, parses the INTERNAL_STATS grammar
// and a bank of legacy regex patterns into metric samples, detects anomaly
// patterns, and applies the noise drop decision.
package appfocus

import "time"

// MetricType is the enumerated app-metric vocabulary.
type MetricType string

const (
	MetricFPSTotal         MetricType = "fps_total"
	MetricFPSRx            MetricType = "fps_rx"
	MetricFPSRd            MetricType = "fps_rd"
	MetricLossFrames       MetricType = "loss_frames"
	MetricLossTotal        MetricType = "loss_total"
	MetricLossPct          MetricType = "loss_pct"
	MetricLossEvents       MetricType = "loss_events"
	MetricRTTMs            MetricType = "rtt_ms"
	MetricRTTVarMs         MetricType = "rtt_var_ms"
	MetricDecodeMs         MetricType = "decode_ms"
	MetricRenderMs         MetricType = "render_ms"
	MetricTotalMs          MetricType = "total_ms"
	MetricHostLatencyMinMs MetricType = "host_latency_min_ms"
	MetricHostLatencyMaxMs MetricType = "host_latency_max_ms"
	MetricHostLatencyAvgMs MetricType = "host_latency_avg_ms"

	// Secondary metrics surfaced only by the legacy regex bank.
	MetricFPSPairLegacy      MetricType = "fps_pair_legacy"
	MetricRTTJitterLegacy    MetricType = "rtt_jitter_legacy"
	MetricLossRateLegacy     MetricType = "loss_rate_legacy"
	MetricPreciseSyncLegacy  MetricType = "precise_sync_legacy"
	MetricPendingAudioLegacy MetricType = "pending_audio_legacy"
	MetricTimeoutCfgLegacy   MetricType = "timeout_config_legacy"
	MetricConnStatsLegacy    MetricType = "connection_stats_legacy"
	MetricE2ELatencyLegacy   MetricType = "end_to_end_latency_legacy"
	MetricDecoderLatLegacy   MetricType = "decoder_latency_legacy"
	MetricDisplayRefrLegacy  MetricType = "display_refresh_legacy"
)

// MetricSource records whether a sample was parsed from the structured
// INTERNAL_STATS grammar or a legacy regex pattern.
type MetricSource string

const (
	SourceInternalStats MetricSource = "internal_stats"
	SourceLegacyPattern MetricSource = "legacy_pattern"
)

// AppMetricSample is one observed numeric metric.
type AppMetricSample struct {
	TS           time.Time
	Type         MetricType
	Value        float64
	Unit         string
	Phase        string
	InSession    bool
	Confidence   string
	MetricSource MetricSource
}

// InternalStatsSample is one [INTERNAL_STATS] line parsed as a joint
// observation, all fields recorded together.
type InternalStatsSample struct {
	TS                time.Time
	FPSTotal          float64
	FPSRx             float64
	FPSRd             float64
	LossFrames        float64
	LossTotal         float64
	LossPct           float64
	LossEvents        float64
	RTTMs             float64
	RTTVarMs          float64
	DecodeMs          float64
	RenderMs          float64
	TotalMs           float64
	HostLatencyMinMs  float64
	HostLatencyMaxMs  float64
	HostLatencyAvgMs  float64
	DecoderHint       string
	HDRHint           string
	Line              string
}

// AnomalyType is the closed anomaly-pattern vocabulary.
type AnomalyType string

const (
	AnomalyNetworkUnstable     AnomalyType = "network_unstable"
	AnomalyConnectionFailure   AnomalyType = "connection_failure"
	AnomalyPollFailedQuickly   AnomalyType = "poll_failed_quickly"
	AnomalyOffline             AnomalyType = "offline"
	AnomalyPendingAudioBacklog AnomalyType = "pending_audio_backlog"
	AnomalyStageFailedOrTerm   AnomalyType = "stage_failed_or_terminated"
	AnomalyFramePacingOrSkip   AnomalyType = "frame_pacing_or_skip"
	AnomalyWarnOrError         AnomalyType = "warn_or_error"
)

// Anomaly is one detected anomaly hit, deduplicated on (ts, type, line).
type Anomaly struct {
	TS       time.Time
	Type     AnomalyType
	Priority string // the line's logcat level; warn_or_error hits carry "W" | "E" | "F" | "A"
	Tag      string
	Line     string
}

// Line is the minimal shape the extractor needs from a parsed threadtime
// line believed to belong to the streaming client.
type Line struct {
	TS      time.Time
	Tag     string
	Level   string // "W" | "E" | "F" | other
	Message string
}

// NoisePolicy selects how aggressively preconnect-polling noise is dropped.
type NoisePolicy string

const (
	NoisePolicyDefault      NoisePolicy = "default"
	NoisePolicyConservative NoisePolicy = "conservative"
	NoisePolicyAggressive   NoisePolicy = "aggressive"
)

// PhaseResolver answers C7's phase/session question for a line's ts.
type PhaseResolver func(ts time.Time) (phase string, inSession bool)

// Result is the extractor's verdict for one line.
type Result struct {
	Phase         string
	InternalStats *InternalStatsSample
	Metrics       []AppMetricSample
	Anomalies     []Anomaly
	Kept          bool
	DropReason    string // "" when kept; else "known_app_noise" | "preconnect_polling_noise" | "aggressive_legacy_outside_session" | "no_signal"
}
