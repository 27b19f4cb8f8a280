package quality

import (
	"fmt"

	"needle/internal/config"
)

// Profile is an artist's quality preference: Items are the allowed qualities
// from least to most preferred.
type Profile struct {
	ID                int
	Name              string
	UpgradeAllowed    bool
	Cutoff            Quality
	Items             []Quality
	MinFormatScore    int
	CutoffFormatScore int
	FormatScores      map[string]int
}

// Index returns the position of q in the profile, or -1 when q is not allowed.
func (p *Profile) Index(q Quality) int {
	if p == nil {
		return -1
	}
	for i, item := range p.Items {
		if item.ID == q.ID {
			return i
		}
	}
	return -1
}

// Allowed reports whether q may be grabbed or imported under this profile.
func (p *Profile) Allowed(q Quality) bool {
	return p.Index(q) >= 0
}

// Compare orders two qualities by profile preference.
func (p *Profile) Compare(a, b Quality) int {
	return compareInt(p.Index(a), p.Index(b))
}

// CompareModels orders two models by quality and, when withRevision is set,
// by revision for equal qualities.
func (p *Profile) CompareModels(a, b Model, withRevision bool) int {
	if c := p.Compare(a.Quality, b.Quality); c != 0 || !withRevision {
		return c
	}
	return a.Revision.Compare(b.Revision)
}

// CutoffMet reports whether q already satisfies the profile's cutoff.
func (p *Profile) CutoffMet(q Quality) bool {
	if p == nil {
		return true
	}
	cutoff := p.Index(p.Cutoff)
	if cutoff < 0 {
		cutoff = len(p.Items) - 1
	}
	return p.Index(q) >= cutoff
}

// FormatScore sums the configured scores of the matched custom format names.
func (p *Profile) FormatScore(formats []string) int {
	if p == nil {
		return 0
	}
	score := 0
	for _, name := range formats {
		score += p.FormatScores[name]
	}
	return score
}

// ProfilesFromConfig resolves configured profiles keyed by id.
func ProfilesFromConfig(profiles []config.QualityProfile) (map[int]*Profile, error) {
	out := make(map[int]*Profile, len(profiles))
	for _, cp := range profiles {
		profile := &Profile{
			ID:                cp.ID,
			Name:              cp.Name,
			UpgradeAllowed:    cp.UpgradeAllowed,
			MinFormatScore:    cp.MinFormatScore,
			CutoffFormatScore: cp.CutoffFormatScore,
			FormatScores:      make(map[string]int, len(cp.FormatScores)),
		}
		for name, score := range cp.FormatScores {
			profile.FormatScores[name] = score
		}
		for _, name := range cp.Qualities {
			q, ok := FindByName(name)
			if !ok {
				return nil, fmt.Errorf("quality profile %q: unknown quality %q", cp.Name, name)
			}
			profile.Items = append(profile.Items, q)
		}
		profile.Cutoff = profile.Items[len(profile.Items)-1]
		if cp.Cutoff != "" {
			q, ok := FindByName(cp.Cutoff)
			if !ok {
				return nil, fmt.Errorf("quality profile %q: unknown cutoff %q", cp.Name, cp.Cutoff)
			}
			profile.Cutoff = q
		}
		out[profile.ID] = profile
	}
	return out, nil
}
