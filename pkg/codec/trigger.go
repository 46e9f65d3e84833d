package codec

import "fmt"

// EncodeTrigger encodes a trigger config tuple. An intent registered with
// an empty trigger condition is unconditional; callers encode that as a
// zero-length byte slice rather than an encoded NONE tuple.
func EncodeTrigger(cfg TriggerConfig) ([]byte, error) {
	w := &writer{}
	w.uint64(cfg.TriggerType)
	w.uint64(cfg.OracleAppID)
	w.dynamic(cfg.OraclePriceKey)
	w.uint64(cfg.Comparator)
	w.uint64(cfg.Threshold)
	return w.finish()
}

// DecodeTrigger decodes a trigger condition. Empty input decodes to the
// NONE trigger.
func DecodeTrigger(buf []byte) (TriggerConfig, error) {
	var cfg TriggerConfig
	if len(buf) == 0 {
		cfg.TriggerType = TriggerNone
		return cfg, nil
	}
	if len(buf) < triggerHeadSize {
		return cfg, fmt.Errorf("trigger config: %w", ErrTruncated)
	}
	r := newReader(buf)
	var err error
	if cfg.TriggerType, err = r.uint64(); err != nil {
		return cfg, err
	}
	if cfg.OracleAppID, err = r.uint64(); err != nil {
		return cfg, err
	}
	if cfg.OraclePriceKey, err = r.dynamic(); err != nil {
		return cfg, fmt.Errorf("trigger price key: %w", err)
	}
	if cfg.Comparator, err = r.uint64(); err != nil {
		return cfg, err
	}
	if cfg.Threshold, err = r.uint64(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
