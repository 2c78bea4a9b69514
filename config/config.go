// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: config.go — Init-time runtime options
//
// Purpose:
//   - Collects every scheduler knob behind one Options record with the
//     defaults the core is tuned for.
//   - Loads JSON override files via sonnet for the demo harness and tools.
//
// Notes:
//   - Options are consumed once by sched.Init; nothing here is touched on
//     the hot path.
// ─────────────────────────────────────────────────────────────────────────────

package config

import (
	"errors"
	"os"
	"runtime"

	"github.com/sugawarayuuta/sonnet"

	"taskrt/constants"
)

// Strategy selects how much a victim surrenders per steal.
type Strategy uint8

const (
	// StealOne: victims hand over a single task.
	StealOne Strategy = iota
	// StealHalf: victims hand over half their deque.
	StealHalf
	// StealAdaptative: per-worker controller flips between one and half
	// based on recent tasks-per-steal throughput.
	StealAdaptative
)

// String returns the canonical knob spelling.
func (s Strategy) String() string {
	switch s {
	case StealOne:
		return "one"
	case StealHalf:
		return "half"
	case StealAdaptative:
		return "adaptative"
	}
	return "invalid"
}

// Options is the full init-time configuration of one runtime instance.
type Options struct {
	NumWorkers         int32   // total worker threads
	Partitions         []int32 // contiguous partition sizes; nil = one pool
	MaxSteal           int32   // outstanding steal requests per worker
	MaxStealAttempts   int32   // forwarding budget; MaxStealAttemptsAuto = N-1
	Strategy           Strategy
	AdaptativeInterval int32 // steals per adaptive window
	VictimCheck        bool  // padded per-worker "has tasks" flags
	StealLastVictim    bool  // bias first dispatch to the last donor
	StealLastThief     bool  // bias first dispatch to the last thief
	DebugTD            bool  // termination-detection trace
	TaskPrealloc       int32 // task records seeded per worker freelist
}

// Defaults returns the options the core is tuned for: one steal request in
// flight per worker, steal-one, no biasing, no tracing.
func Defaults() Options {
	n := int32(runtime.NumCPU())
	if n > constants.MaxWorkers {
		n = constants.MaxWorkers
	}
	return Options{
		NumWorkers:         n,
		MaxSteal:           constants.DefaultMaxSteal,
		MaxStealAttempts:   constants.MaxStealAttemptsAuto,
		Strategy:           StealOne,
		AdaptativeInterval: constants.StealAdaptativeInterval,
		TaskPrealloc:       256,
	}
}

// fileOptions is the JSON surface of Options. Absent fields keep defaults.
type fileOptions struct {
	NumWorkers         *int32  `json:"num_workers"`
	Partitions         []int32 `json:"partitions"`
	MaxSteal           *int32  `json:"max_steal"`
	MaxStealAttempts   *int32  `json:"max_steal_attempts"`
	Strategy           *string `json:"steal_strategy"`
	AdaptativeInterval *int32  `json:"steal_adaptative_interval"`
	VictimCheck        *bool   `json:"victim_check"`
	StealLastVictim    *bool   `json:"steal_last_victim"`
	StealLastThief     *bool   `json:"steal_last_thief"`
	DebugTD            *bool   `json:"debug_td"`
	TaskPrealloc       *int32  `json:"task_prealloc"`
}

// Load reads a JSON options file over the defaults.
func Load(path string) (Options, error) {
	opts := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	var f fileOptions
	if err := sonnet.Unmarshal(raw, &f); err != nil {
		return opts, err
	}
	if f.NumWorkers != nil {
		opts.NumWorkers = *f.NumWorkers
	}
	if f.Partitions != nil {
		opts.Partitions = f.Partitions
	}
	if f.MaxSteal != nil {
		opts.MaxSteal = *f.MaxSteal
	}
	if f.MaxStealAttempts != nil {
		opts.MaxStealAttempts = *f.MaxStealAttempts
	}
	if f.Strategy != nil {
		switch *f.Strategy {
		case "one":
			opts.Strategy = StealOne
		case "half":
			opts.Strategy = StealHalf
		case "adaptative":
			opts.Strategy = StealAdaptative
		default:
			return opts, errors.New("config: unknown steal_strategy " + *f.Strategy)
		}
	}
	if f.AdaptativeInterval != nil {
		opts.AdaptativeInterval = *f.AdaptativeInterval
	}
	if f.VictimCheck != nil {
		opts.VictimCheck = *f.VictimCheck
	}
	if f.StealLastVictim != nil {
		opts.StealLastVictim = *f.StealLastVictim
	}
	if f.StealLastThief != nil {
		opts.StealLastThief = *f.StealLastThief
	}
	if f.DebugTD != nil {
		opts.DebugTD = *f.DebugTD
	}
	if f.TaskPrealloc != nil {
		opts.TaskPrealloc = *f.TaskPrealloc
	}
	return opts, opts.Validate()
}

// Validate rejects configurations the core cannot honor.
func (o *Options) Validate() error {
	if o.NumWorkers < 1 || o.NumWorkers > constants.MaxWorkers {
		return errors.New("config: num_workers out of range 1.." +
			itoa(constants.MaxWorkers))
	}
	if o.MaxSteal < 1 || o.MaxSteal > constants.MaxStealLimit {
		return errors.New("config: max_steal out of range 1.." +
			itoa(constants.MaxStealLimit))
	}
	if o.MaxStealAttempts < constants.MaxStealAttemptsAuto {
		return errors.New("config: max_steal_attempts below auto sentinel")
	}
	if o.AdaptativeInterval < 1 {
		return errors.New("config: steal_adaptative_interval must be positive")
	}
	if o.StealLastVictim && o.StealLastThief {
		return errors.New("config: steal_last_victim and steal_last_thief are exclusive")
	}
	for _, n := range o.Partitions {
		if n < 1 || n > constants.MaxWorkers {
			return errors.New("config: partition size out of range")
		}
	}
	return nil
}

// itoa avoids importing utils here just for error strings.
func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
