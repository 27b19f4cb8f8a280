package decision

import (
	"strings"

	"needle/internal/config"
	"needle/internal/quality"
)

// UpgradePolicy decides whether a candidate improves on what is already held.
type UpgradePolicy struct {
	Propers string
}

// NewUpgradePolicy returns the policy for the configured propers setting.
func NewUpgradePolicy(propers string) UpgradePolicy {
	return UpgradePolicy{Propers: propers}
}

func (p UpgradePolicy) prefersRevisions() bool {
	return p.Propers != config.PropersDoNotPrefer
}

// IsUpgradable reports whether candidate improves on every current quality:
// a better quality wins outright, a worse one loses, and for equal qualities a
// newer revision or a higher custom format score decides.
func (p UpgradePolicy) IsUpgradable(profile *quality.Profile, current []quality.Model, currentScore int, candidate quality.Model, candidateScore int) bool {
	total := 0
	for _, held := range current {
		cmp := profile.Compare(candidate.Quality, held.Quality)
		if cmp < 0 {
			return false
		}
		total += cmp
	}
	if total > 0 {
		return true
	}
	if p.prefersRevisions() && p.isRevisionUpgrade(current, candidate) {
		return true
	}
	return candidateScore > currentScore
}

// IsUpgradeAllowed reports whether the profile permits replacing current with
// a better candidate.
func (p UpgradePolicy) IsUpgradeAllowed(profile *quality.Profile, current []quality.Model, candidate quality.Model) bool {
	if profile == nil || profile.UpgradeAllowed {
		return true
	}
	for _, held := range current {
		if profile.Compare(candidate.Quality, held.Quality) > 0 {
			return false
		}
	}
	return true
}

// CutoffNotMet reports whether current still falls short of the profile's
// cutoff, optionally considering a revision upgrade from candidate.
func (p UpgradePolicy) CutoffNotMet(profile *quality.Profile, current quality.Model, currentScore int, candidate *quality.Model) bool {
	if profile == nil {
		return false
	}
	if !profile.CutoffMet(current.Quality) {
		return true
	}
	if currentScore < profile.CutoffFormatScore {
		return true
	}
	if candidate != nil && p.prefersRevisions() && candidate.Quality == current.Quality &&
		candidate.Revision.Compare(current.Revision) > 0 {
		return true
	}
	return false
}

// IsRevisionUpgrade reports whether candidate is a newer revision of one of
// the current qualities.
func (p UpgradePolicy) IsRevisionUpgrade(current []quality.Model, candidate quality.Model) bool {
	return p.isRevisionUpgrade(current, candidate)
}

func (p UpgradePolicy) isRevisionUpgrade(current []quality.Model, candidate quality.Model) bool {
	for _, held := range current {
		if held.Quality == candidate.Quality && candidate.Revision.Compare(held.Revision) > 0 {
			return true
		}
	}
	return false
}

// DelayProfileFor picks the first ordered profile sharing a tag with tags,
// falling back to the untagged profile.
func DelayProfileFor(profiles []config.DelayProfile, tags []string) config.DelayProfile {
	var fallback *config.DelayProfile
	for i := range profiles {
		profile := &profiles[i]
		if len(profile.Tags) == 0 {
			if fallback == nil {
				fallback = profile
			}
			continue
		}
		for _, want := range profile.Tags {
			for _, have := range tags {
				if strings.EqualFold(want, have) {
					return *profile
				}
			}
		}
	}
	if fallback != nil {
		return *fallback
	}
	return config.DelayProfile{PreferredProtocol: config.ProtocolTorrent, EnableTorrent: true, EnableUsenet: true}
}
