// Package config defines the CLI/config surface the host must provide,
// following the teacher's stdlib flag.FlagSet idiom (no CLI framework
// dependency appears in the example pack, so none is introduced here).
package config

import (
	"flag"
	"fmt"
)

// Config holds every knob named in the external interfaces section: atom
// count, grid dimensions, k-means/NCA parameters, and physics/render
// tunables. Every size constant here is baked into shader source at
// startup (see gpu.Constants.Inject) and therefore fixed for the process
// lifetime.
type Config struct {
	N int // atom count

	Wd, Hd int // display accumulator grid size
	Wg, Hg int // shape/NCA grid size

	K    int // OT k-means centroid count
	Iter int // k-means iterations

	Steps    int     // NCA iterations
	FireRate float32 // NCA stochastic fire rate

	MorphDuration float32 // seconds
	HoldDuration  float32 // seconds
	Decay         float32 // trail decay factor
	MaxVel        float32
	Bound         float32

	BloomEnabled   bool
	BloomThreshold float32
	TrailRef       float32 // log-tonemap reference brightness

	WeightsPath string
	Debug       bool
}

// Default returns the configuration with every default named in the
// external interfaces section.
func Default() Config {
	return Config{
		N:             1_500_000,
		Wd:            2560,
		Hd:            1440,
		Wg:            128,
		Hg:            128,
		K:             512,
		Iter:          6,
		Steps:         64,
		FireRate:      0.5,
		MorphDuration: 2.0,
		HoldDuration:  3.5,
		Decay:         0.90,
		MaxVel:        0.55,
		Bound:         0.92,
		BloomEnabled:   true,
		BloomThreshold: 4.0,
		TrailRef:       64.0,
		WeightsPath:   "nca_weights.json",
	}
}

// Parse builds a Config from command-line flags, seeded with defaults.
func Parse(args []string) (Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet("atomfield", flag.ContinueOnError)

	fs.IntVar(&cfg.N, "N", cfg.N, "atom count")
	fs.IntVar(&cfg.Wd, "W_d", cfg.Wd, "display grid width")
	fs.IntVar(&cfg.Hd, "H_d", cfg.Hd, "display grid height")
	fs.IntVar(&cfg.Wg, "W_g", cfg.Wg, "shape grid width")
	fs.IntVar(&cfg.Hg, "H_g", cfg.Hg, "shape grid height")
	fs.IntVar(&cfg.K, "K", cfg.K, "OT centroid count")
	fs.IntVar(&cfg.Iter, "ITER", cfg.Iter, "k-means iterations")
	fs.IntVar(&cfg.Steps, "STEPS", cfg.Steps, "NCA steps")
	fireRate := fs.Float64("fire_rate", float64(cfg.FireRate), "NCA stochastic fire rate")
	morph := fs.Float64("MORPH_DURATION", float64(cfg.MorphDuration), "morph duration seconds")
	hold := fs.Float64("HOLD_DURATION", float64(cfg.HoldDuration), "hold duration seconds")
	decay := fs.Float64("DECAY", float64(cfg.Decay), "trail decay factor")
	maxVel := fs.Float64("MAX_VEL", float64(cfg.MaxVel), "wander max velocity")
	bound := fs.Float64("BOUND", float64(cfg.Bound), "wander soft wall bound")
	bloomThreshold := fs.Float64("bloom_threshold", float64(cfg.BloomThreshold), "bloom brightness threshold")
	trailRef := fs.Float64("trail_ref", float64(cfg.TrailRef), "log-tonemap reference brightness")
	fs.BoolVar(&cfg.BloomEnabled, "bloom", cfg.BloomEnabled, "enable bloom pass")
	fs.StringVar(&cfg.WeightsPath, "weights", cfg.WeightsPath, "NCA weight JSON path")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.FireRate = float32(*fireRate)
	cfg.MorphDuration = float32(*morph)
	cfg.HoldDuration = float32(*hold)
	cfg.Decay = float32(*decay)
	cfg.MaxVel = float32(*maxVel)
	cfg.Bound = float32(*bound)
	cfg.BloomThreshold = float32(*bloomThreshold)
	cfg.TrailRef = float32(*trailRef)

	return cfg, cfg.Validate()
}

// Validate checks the number-hygiene requirement from the design notes:
// the k-means fixed-point scale must not overflow a signed 32-bit
// accumulator for the configured atom count.
func (c Config) Validate() error {
	if c.N <= 0 || c.Wg <= 0 || c.Hg <= 0 || c.Wd <= 0 || c.Hd <= 0 || c.K <= 0 {
		return fmt.Errorf("config: N, W_g, H_g, W_d, H_d, K must be positive")
	}
	if c.K > c.N {
		return fmt.Errorf("config: K (%d) must not exceed N (%d)", c.K, c.N)
	}
	scale := KMeansScale(c.N)
	const maxCoord = 1.0
	if float64(c.N)*float64(scale)*maxCoord >= (1 << 31) {
		return fmt.Errorf("config: N*SCALE*max_coord overflows int32 accumulator")
	}
	return nil
}

// KMeansScale picks the fixed-point multiplier so that N*SCALE*max_coord
// stays comfortably under the int32 range, per the design notes' number
// hygiene rule. spec.md names SCALE=16384 as a starting point for
// N=1.5M, but 1.5M*16384 alone already exceeds 2^31 — the accumulator
// is summed per k-means cluster, not over all N at once, yet the
// degenerate case (every point landing in one cluster) still has to fit,
// so the safe, checkable bound is the literal N*SCALE one. Starting from
// the spec's reference scale, the loop halves until N*SCALE < 2^30; small
// N keep 16384, while the default N=1.5M ends at 512.
func KMeansScale(n int) int32 {
	const referenceScale = 16384
	scale := int32(referenceScale)
	for int64(n)*int64(scale) >= (1 << 30) {
		scale /= 2
	}
	if scale < 1 {
		scale = 1
	}
	return scale
}
