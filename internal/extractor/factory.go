package extractor

import (
	"github.com/sirupsen/logrus"

	"ssis-checker/internal/nutrition"
)

// New builds the extractor named by cfg.Type, wrapped in a result cache.
func New(cfg Config, logger *logrus.Logger) (CachedExtractor, error) {
	if logger == nil {
		logger = logrus.New()
	}
	provider, err := ParseProviderType(cfg.Type)
	if err != nil {
		return nil, err
	}

	var next Extractor
	switch provider {
	case ProviderStatic:
		sample := cfg.Sample
		if sample == "" {
			sample = nutrition.SampleCompliant
		}
		record, err := nutrition.SampleRecord(sample)
		if err != nil {
			return nil, err
		}
		next = &StaticExtractor{Record: record}
	default:
		vision, err := NewVisionExtractor(cfg, logger)
		if err != nil {
			return nil, err
		}
		next = vision
	}

	logger.WithFields(logrus.Fields{
		"type":  provider,
		"model": cfg.Model,
	}).Debug("Extractor initialized")
	return WithCache(next, cfg.CacheSize, logger), nil
}
