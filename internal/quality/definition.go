package quality

import (
	"fmt"

	"needle/internal/config"
)

// bytesPerKilobit converts kbit/s targets into bytes per second.
const bytesPerKilobit = 128

// Definition is the bitrate envelope of one quality in kbit/s. Zero bounds are open.
type Definition struct {
	Quality       Quality
	MinKbps       int
	MaxKbps       int
	PreferredKbps int
}

// Definitions indexes definitions by quality id.
type Definitions map[int]Definition

var defaultKbps = map[int][3]int{
	MP3128.ID:    {0, 140, 128},
	MP3160.ID:    {0, 175, 160},
	MP3192.ID:    {0, 210, 192},
	MP3256.ID:    {0, 280, 256},
	MP3320.ID:    {0, 350, 320},
	MP3VBRV2.ID:  {0, 250, 190},
	MP3VBRV0.ID:  {0, 300, 245},
	AAC192.ID:    {0, 210, 192},
	AAC256.ID:    {0, 280, 256},
	AAC320.ID:    {0, 350, 320},
	AACVBR.ID:    {0, 350, 256},
	OGGVorbis.ID: {0, 350, 256},
	WMA.ID:       {0, 350, 256},
	ALAC.ID:      {0, 1400, 900},
	FLAC.ID:      {0, 1400, 900},
	FLAC24.ID:    {0, 5000, 2300},
	ALAC24.ID:    {0, 5000, 2300},
	APE.ID:       {0, 1400, 900},
	WavPack.ID:   {0, 1400, 900},
	WAV.ID:       {0, 2000, 1411},
}

// DefaultDefinitions returns the built-in envelopes. Unknown has none.
func DefaultDefinitions() Definitions {
	defs := make(Definitions, len(all))
	for _, q := range all {
		kbps := defaultKbps[q.ID]
		defs[q.ID] = Definition{Quality: q, MinKbps: kbps[0], MaxKbps: kbps[1], PreferredKbps: kbps[2]}
	}
	return defs
}

// DefinitionsFromConfig applies configured overrides on top of the defaults.
func DefinitionsFromConfig(overrides []config.QualityDefinition) (Definitions, error) {
	defs := DefaultDefinitions()
	for _, override := range overrides {
		q, ok := FindByName(override.Quality)
		if !ok {
			return nil, fmt.Errorf("quality definition: unknown quality %q", override.Quality)
		}
		defs[q.ID] = Definition{Quality: q, MinKbps: override.MinKbps, MaxKbps: override.MaxKbps, PreferredKbps: override.PreferredKbps}
	}
	return defs, nil
}

// Get returns the definition for q, or an open definition when none exists.
func (d Definitions) Get(q Quality) Definition {
	if def, ok := d[q.ID]; ok {
		return def
	}
	return Definition{Quality: q}
}

// SizeForDuration converts a kbit/s rate over seconds of audio into bytes.
func SizeForDuration(kbps int, seconds int64) int64 {
	return int64(kbps) * seconds * bytesPerKilobit
}
