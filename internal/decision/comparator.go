package decision

import (
	"math"
	"time"

	"needle/internal/config"
	"needle/internal/indexer"
	"needle/internal/quality"
)

// Ranking constants. They are part of the ranking behaviour: changing them
// changes which near-identical releases tie.
const (
	SizeBucket          int64 = 100 << 20
	AgeScoreUnderHour         = 1000
	AgeScoreUnderDay          = 100
	AgeScoreUnderWeek         = 10
	ageWeekDays               = 7
	ageDayHours               = 24
	ageHourThreshold          = 1
)

// ComparatorOptions configures ranking.
type ComparatorOptions struct {
	Profiles      map[int]*quality.Profile
	Definitions   quality.Definitions
	DelayProfiles []config.DelayProfile
	Propers       string
	Now           func() time.Time
}

// Comparator orders remote albums best first.
type Comparator struct {
	profiles    map[int]*quality.Profile
	definitions quality.Definitions
	delays      []config.DelayProfile
	propers     string
	now         func() time.Time
	partials    []func(a, b *RemoteAlbum) int
}

// NewComparator returns a comparator applying the ordered partial comparisons.
func NewComparator(opts ComparatorOptions) *Comparator {
	c := &Comparator{
		profiles:    opts.Profiles,
		definitions: opts.Definitions,
		delays:      opts.DelayProfiles,
		propers:     opts.Propers,
		now:         opts.Now,
	}
	if c.definitions == nil {
		c.definitions = quality.DefaultDefinitions()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.partials = []func(a, b *RemoteAlbum) int{
		c.compareQuality,
		c.compareCustomFormatScore,
		c.compareProtocol,
		c.compareIndexerPriority,
		c.comparePeersIfTorrent,
		c.compareAlbumCount,
		c.compareAgeIfUsenet,
		c.compareSize,
	}
	return c
}

// Compare returns a positive value when a ranks above b, negative when below
// and zero when no criterion separates them.
func (c *Comparator) Compare(a, b *RemoteAlbum) int {
	for _, partial := range c.partials {
		if result := partial(a, b); result != 0 {
			return result
		}
	}
	return 0
}

func (c *Comparator) profileFor(r *RemoteAlbum) *quality.Profile {
	if r.Artist == nil {
		return nil
	}
	return c.profiles[r.Artist.QualityProfileID]
}

func (c *Comparator) compareQuality(a, b *RemoteAlbum) int {
	qa, qb := a.ParsedInfo.Quality, b.ParsedInfo.Quality
	if result := compareInts(c.profileFor(a).Index(qa.Quality), c.profileFor(b).Index(qb.Quality)); result != 0 {
		return result
	}
	if c.propers == config.PropersDoNotPrefer {
		return 0
	}
	return qa.Revision.Compare(qb.Revision)
}

func (c *Comparator) compareCustomFormatScore(a, b *RemoteAlbum) int {
	return compareInts(a.CustomFormatScore, b.CustomFormatScore)
}

func (c *Comparator) compareProtocol(a, b *RemoteAlbum) int {
	score := func(r *RemoteAlbum) int {
		var tags []string
		if r.Artist != nil {
			tags = r.Artist.Tags
		}
		if string(r.Release.Protocol) == DelayProfileFor(c.delays, tags).PreferredProtocol {
			return 1
		}
		return 0
	}
	return compareInts(score(a), score(b))
}

func (c *Comparator) compareIndexerPriority(a, b *RemoteAlbum) int {
	return compareInts(b.Release.IndexerPriority, a.Release.IndexerPriority)
}

func (c *Comparator) comparePeersIfTorrent(a, b *RemoteAlbum) int {
	if a.Release.Protocol != indexer.ProtocolTorrent || b.Release.Protocol != indexer.ProtocolTorrent {
		return 0
	}
	if result := compareInts(logScale(a.Release.Seeders), logScale(b.Release.Seeders)); result != 0 {
		return result
	}
	return compareInts(logScale(a.Release.Peers), logScale(b.Release.Peers))
}

func (c *Comparator) compareAlbumCount(a, b *RemoteAlbum) int {
	if result := compareBools(b.ParsedInfo.Discography, a.ParsedInfo.Discography); result != 0 {
		return result
	}
	return compareInts(len(a.Albums), len(b.Albums))
}

func (c *Comparator) compareAgeIfUsenet(a, b *RemoteAlbum) int {
	if a.Release.Protocol != indexer.ProtocolUsenet || b.Release.Protocol != indexer.ProtocolUsenet {
		return 0
	}
	now := c.now()
	return compareInts(ageScore(a.Release, now), ageScore(b.Release, now))
}

func (c *Comparator) compareSize(a, b *RemoteAlbum) int {
	return compareInt64s(c.sizeScore(a), c.sizeScore(b))
}

// sizeScore ranks closeness to the preferred size when one is known, otherwise
// raw size, both in SizeBucket steps.
func (c *Comparator) sizeScore(r *RemoteAlbum) int64 {
	preferredKbps := c.definitions.Get(r.ParsedInfo.Quality.Quality).PreferredKbps
	seconds := int64(r.Duration() / time.Second)
	if preferredKbps > 0 && seconds > 0 {
		preferred := quality.SizeForDuration(preferredKbps, seconds)
		diff := floorToBucket(r.Release.Size - preferred)
		if diff < 0 {
			diff = -diff
		}
		return -diff
	}
	return floorToBucket(r.Release.Size)
}

func floorToBucket(value int64) int64 {
	return int64(math.Floor(float64(value)/float64(SizeBucket))) * SizeBucket
}

// logScale maps a peer count onto round(log10(n)), with missing or
// non-positive counts scoring 0.
func logScale(count *int) int {
	if count == nil || *count <= 0 {
		return 0
	}
	return int(math.RoundToEven(math.Log10(float64(*count))))
}

func ageScore(release *indexer.Release, now time.Time) int {
	age := release.Age(now)
	switch {
	case age < ageHourThreshold*time.Hour:
		return AgeScoreUnderHour
	case age <= ageDayHours*time.Hour:
		return AgeScoreUnderDay
	}
	days := release.AgeDays(now)
	if days <= ageWeekDays {
		return AgeScoreUnderWeek
	}
	return -int(math.RoundToEven(math.Log10(float64(days))))
}

func compareInts(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

func compareInt64s(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}
