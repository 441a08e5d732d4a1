package monitor

import (
	"go.uber.org/zap"

	"github.com/srodi/netpulse-bpf/pkg/aggregator"
	"github.com/srodi/netpulse-bpf/pkg/types"
)

// ConfigController validates configuration changes and applies them to the
// aggregator atomically: a concurrent snapshot sees either the old config and
// window or the new ones.
type ConfigController struct {
	agg    *aggregator.Aggregator
	logger *zap.Logger
}

// NewConfigController returns a controller for agg.
func NewConfigController(agg *aggregator.Aggregator, logger *zap.Logger) *ConfigController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigController{agg: agg, logger: logger}
}

// Apply replaces the whole configuration. Invalid values leave the previous
// configuration in effect and return a *types.ValidationError.
func (c *ConfigController) Apply(cfg types.Config) (types.Config, error) {
	return c.reconfigure(func(types.Config) types.Config { return cfg })
}

// Update merges p into the active configuration.
func (c *ConfigController) Update(p types.ConfigPatch) (types.Config, error) {
	return c.reconfigure(p.Merge)
}

func (c *ConfigController) reconfigure(next func(types.Config) types.Config) (types.Config, error) {
	cfg, err := c.agg.Reconfigure(next)
	if err != nil {
		c.logger.Info("rejected config update", zap.Error(err))
		return cfg, err
	}
	c.logger.Info("config updated", zap.Float64("interval", cfg.Interval), zap.Int("window_size", cfg.WindowSize))
	return cfg, nil
}
