package model

import "time"

// Options is the single keyed record (options/global) of tunable scalars
// consumed by every operator on every iteration. internal/options wraps
// this record with a brief-TTL cache and exposes it as an immutable
// snapshot per loop iteration.
type Options struct {
	// Polling frequencies, one per operator, plus read timeouts per
	// external client.
	DiscoveryFrequency          time.Duration `json:"discovery_frequency" bson:"discovery_frequency"`
	SessionSetupFrequency       time.Duration `json:"session_setup_frequency" bson:"session_setup_frequency"`
	ConfigurationFrequency      time.Duration `json:"configuration_frequency" bson:"configuration_frequency"`
	PowerOnFrequency             time.Duration `json:"power_on_frequency" bson:"power_on_frequency"`
	PowerOffGracefulFrequency    time.Duration `json:"power_off_graceful_frequency" bson:"power_off_graceful_frequency"`
	PowerOffForcefulFrequency    time.Duration `json:"power_off_forceful_frequency" bson:"power_off_forceful_frequency"`
	StatusFrequency              time.Duration `json:"status_frequency" bson:"status_frequency"`
	SessionCompletionFrequency   time.Duration `json:"session_completion_frequency" bson:"session_completion_frequency"`
	SessionCleanupFrequency      time.Duration `json:"session_cleanup_frequency" bson:"session_cleanup_frequency"`
	ActualStateCleanupFrequency  time.Duration `json:"actual_state_cleanup_frequency" bson:"actual_state_cleanup_frequency"`

	PCSReadTimeout time.Duration `json:"pcs_read_timeout" bson:"pcs_read_timeout"`
	HSMReadTimeout time.Duration `json:"hsm_read_timeout" bson:"hsm_read_timeout"`
	BSSReadTimeout time.Duration `json:"bss_read_timeout" bson:"bss_read_timeout"`
	IMSReadTimeout time.Duration `json:"ims_read_timeout" bson:"ims_read_timeout"`
	CFSReadTimeout time.Duration `json:"cfs_read_timeout" bson:"cfs_read_timeout"`

	// Batch sizing and retry policy.
	MaxComponentBatchSize int `json:"max_component_batch_size" bson:"max_component_batch_size"`
	DefaultRetryPolicy    int `json:"default_retry_policy" bson:"default_retry_policy"`

	// Timing thresholds.
	ForcefulTimeout   time.Duration `json:"forceful_timeout" bson:"forceful_timeout"`
	SessionRetention  time.Duration `json:"session_retention" bson:"session_retention"`
	ActualStateStaleTTL time.Duration `json:"actual_state_stale_ttl" bson:"actual_state_stale_ttl"`

	// Feature flags.
	RejectNIDs                   bool `json:"reject_nids" bson:"reject_nids"`
	SessionLimitRequired         bool `json:"session_limit_required" bson:"session_limit_required"`
	IMSErrorsFatal                bool `json:"ims_errors_fatal" bson:"ims_errors_fatal"`
	IMSImagesMustExist            bool `json:"ims_images_must_exist" bson:"ims_images_must_exist"`
	DisableComponentsOnCompletion bool `json:"disable_components_on_completion" bson:"disable_components_on_completion"`

	LogLevel string `json:"log_level" bson:"log_level"`
}

// DefaultOptions returns the typed defaults consulted when the options
// record has never been written (fresh store) or is missing a field
// added by a later version — additive defaulting, not a migration.
func DefaultOptions() Options {
	return Options{
		DiscoveryFrequency:           60 * time.Second,
		SessionSetupFrequency:        3 * time.Second,
		ConfigurationFrequency:       10 * time.Second,
		PowerOnFrequency:             10 * time.Second,
		PowerOffGracefulFrequency:    10 * time.Second,
		PowerOffForcefulFrequency:    10 * time.Second,
		StatusFrequency:              10 * time.Second,
		SessionCompletionFrequency:   5 * time.Second,
		SessionCleanupFrequency:      60 * time.Second,
		ActualStateCleanupFrequency:  5 * time.Minute,

		PCSReadTimeout: 30 * time.Second,
		HSMReadTimeout: 30 * time.Second,
		BSSReadTimeout: 30 * time.Second,
		IMSReadTimeout: 30 * time.Second,
		CFSReadTimeout: 30 * time.Second,

		MaxComponentBatchSize: 100,
		DefaultRetryPolicy:    3,

		ForcefulTimeout:     5 * time.Minute,
		SessionRetention:    24 * time.Hour,
		ActualStateStaleTTL: 7 * 24 * time.Hour,

		RejectNIDs:                    false,
		SessionLimitRequired:          false,
		IMSErrorsFatal:                false,
		IMSImagesMustExist:            false,
		DisableComponentsOnCompletion: false,

		LogLevel: "info",
	}
}
