package flowmesh

import (
	"time"

	"github.com/corvidlabs/flowmesh/pkg/flowmesh/config"
)

// OptionsFromConfig translates a loaded config.Config into CreateOptions,
// so a Runtime's queue sizing can live in a YAML file instead of Go source.
// Recognized keys: queue_capacity (int) and rookery_capacity (int). A
// default_timeout key is not read here; callers apply it per node with
// ApplyDefaultTimeout.
func OptionsFromConfig(cfg config.Config) []CreateOption {
	var opts []CreateOption
	if cfg.Has("queue_capacity") {
		opts = append(opts, WithQueueCapacity(cfg.Int("queue_capacity", 64)))
	}
	if cfg.Has("rookery_capacity") {
		opts = append(opts, WithRookeryCapacity(cfg.Int("rookery_capacity", 64)))
	}
	return opts
}

// ApplyDefaultTimeout returns a copy of policy with TimeoutS set to
// fallback when the policy doesn't already declare one. Intended for
// callers that load a default_timeout from config.Config and want every
// node without its own explicit timeout to inherit it.
func ApplyDefaultTimeout(policy NodePolicy, fallback time.Duration) NodePolicy {
	if policy.TimeoutS == 0 {
		policy.TimeoutS = fallback
	}
	return policy
}
