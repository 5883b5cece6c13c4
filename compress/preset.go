package compress

import "errors"

var (
	ErrInvalidQuality = errors.New("quality must be between 1 and 100")
	ErrInvalidLevel   = errors.New("level must be between 0 and 3")
)

// Preset bundles the Ghostscript parameters for one quality tier.
type Preset struct {
	Name        string
	PDFSettings string
	ImageDPI    int
	JPEGQuality int
	Downsample  bool
}

// The four tiers, lowest fidelity first. Prepress keeps images at their
// original resolution, so downsampling is disabled for it.
var tiers = [4]Preset{
	{Name: "screen", PDFSettings: "/screen", ImageDPI: 72, JPEGQuality: 50, Downsample: true},
	{Name: "ebook", PDFSettings: "/ebook", ImageDPI: 120, JPEGQuality: 60, Downsample: true},
	{Name: "printer", PDFSettings: "/printer", ImageDPI: 200, JPEGQuality: 75, Downsample: true},
	{Name: "prepress", PDFSettings: "/prepress", ImageDPI: 300, JPEGQuality: 85, Downsample: false},
}

// ForQuality maps a 1-100 quality value to a preset tier. Boundaries are
// closed on the lower tier: 25 is still screen, 26 is ebook.
func ForQuality(quality int) (Preset, error) {
	if quality < 1 || quality > 100 {
		return Preset{}, ErrInvalidQuality
	}
	switch {
	case quality <= 25:
		return tiers[0], nil
	case quality <= 60:
		return tiers[1], nil
	case quality <= 85:
		return tiers[2], nil
	default:
		return tiers[3], nil
	}
}

// ForLevel maps a discrete level 0-3 directly to a preset tier.
func ForLevel(level int) (Preset, error) {
	if level < 0 || level > 3 {
		return Preset{}, ErrInvalidLevel
	}
	return tiers[level], nil
}

// Tier returns the tier index (0-3) of the preset.
func (p Preset) Tier() int {
	for i, t := range tiers {
		if t.Name == p.Name {
			return i
		}
	}
	return 0
}
