// Package domain models slope-monitoring observations for rockfall risk
// estimation.
//
// # Data Sources
//
// Two families of streams feed the pipeline:
//
//	Environmental: a single feed carrying rainfall, temperature, ambient
//	vibration, humidity, wind speed, and barometric pressure per record.
//	Upstream producers disagree on field spellings ("rainfall" vs
//	"rainfall_mm", "vibrations" vs "ambient_vibration"); the stream loader
//	resolves them to one canonical name per quantity.
//
//	Geotechnical sensors: one stream per instrument kind (displacement,
//	strain, pore_pressure, vibrations), each a table of timestamp/value
//	pairs sampled at the instrument's own cadence.
//
// # Units
//
//	rainfall_mm        millimetres per reading interval
//	temperature_c      degrees Celsius
//	displacement       millimetres of crest movement
//	strain             dimensionless microstrain ratio
//	pore_pressure      normalized pressure units
//	vibrations         peak ground acceleration, g
//	pressure           hectopascals
//
// # Missing Data Conventions
//
// A record with an unparsable timestamp is dropped outright: without a
// position on the timeline it cannot be aligned, so it is unrecoverable
// information rather than a missing feature. A record with a missing or
// non-numeric value survives as a null cell and is resolved later by the
// aligner's fill chain (forward, then backward, then zero) or, at inference
// time, by the feature contract's pattern defaults:
//
//	temperature-like   20.0 °C (nominal room temperature)
//	pressure-like      1013.25 hPa (nominal sea level)
//	humidity-like      50 %
//	rolling/diff-like  0
//	anything else      0
//
// All substitutions are deterministic and independent of call order so that
// reprocessing the same inputs reproduces the same table byte for byte.
package domain
