package customformat

import (
	"fmt"
	"regexp"
	"strings"

	"needle/internal/config"
)

const bytesPerGB = 1 << 30

// Condition is one compiled predicate of a format.
type Condition struct {
	Type     string
	Pattern  *regexp.Regexp
	Protocol string
	MinBytes int64
	MaxBytes int64
	Negate   bool
	Required bool
}

// Format is a named custom format.
type Format struct {
	Name       string
	Conditions []Condition
}

// Input is the release data a format is matched against.
type Input struct {
	Title        string
	ReleaseGroup string
	Size         int64
	Protocol     string
}

// FromConfig compiles configured formats.
func FromConfig(formats []config.CustomFormat) ([]Format, error) {
	out := make([]Format, 0, len(formats))
	for _, cf := range formats {
		format := Format{Name: cf.Name}
		for i, cc := range cf.Conditions {
			cond := Condition{
				Type:     cc.Type,
				Negate:   cc.Negate,
				Required: cc.Required,
			}
			switch cc.Type {
			case config.ConditionReleaseTitle, config.ConditionReleaseGroup:
				re, err := regexp.Compile("(?i)" + cc.Value)
				if err != nil {
					return nil, fmt.Errorf("custom format %q condition %d: %w", cf.Name, i, err)
				}
				cond.Pattern = re
			case config.ConditionProtocol:
				cond.Protocol = strings.ToLower(strings.TrimSpace(cc.Value))
			case config.ConditionSize:
				cond.MinBytes = int64(cc.MinGB * bytesPerGB)
				cond.MaxBytes = int64(cc.MaxGB * bytesPerGB)
			default:
				return nil, fmt.Errorf("custom format %q condition %d: unsupported type %q", cf.Name, i, cc.Type)
			}
			format.Conditions = append(format.Conditions, cond)
		}
		out = append(out, format)
	}
	return out, nil
}

func (c Condition) satisfiedBy(in Input) bool {
	var match bool
	switch c.Type {
	case config.ConditionReleaseTitle:
		match = c.Pattern.MatchString(in.Title)
	case config.ConditionReleaseGroup:
		match = in.ReleaseGroup != "" && c.Pattern.MatchString(in.ReleaseGroup)
	case config.ConditionProtocol:
		match = strings.EqualFold(in.Protocol, c.Protocol)
	case config.ConditionSize:
		match = in.Size > c.MinBytes && (c.MaxBytes <= 0 || in.Size <= c.MaxBytes)
	}
	if c.Negate {
		return !match
	}
	return match
}

// Matches reports whether every condition kind of the format is satisfied:
// all required conditions hold and at least one condition of the kind holds.
func (f Format) Matches(in Input) bool {
	if len(f.Conditions) == 0 {
		return false
	}
	type tally struct{ any, requiredFailed bool }
	kinds := make(map[string]*tally)
	var order []string
	for _, cond := range f.Conditions {
		t, ok := kinds[cond.Type]
		if !ok {
			t = &tally{}
			kinds[cond.Type] = t
			order = append(order, cond.Type)
		}
		if cond.satisfiedBy(in) {
			t.any = true
		} else if cond.Required {
			t.requiredFailed = true
		}
	}
	for _, kind := range order {
		if t := kinds[kind]; !t.any || t.requiredFailed {
			return false
		}
	}
	return true
}

// Calculator matches releases against a fixed set of formats.
type Calculator struct {
	formats []Format
}

// NewCalculator returns a calculator over formats.
func NewCalculator(formats []Format) *Calculator {
	return &Calculator{formats: formats}
}

// Match returns the names of the formats matching in, in configuration order.
func (c *Calculator) Match(in Input) []string {
	if c == nil {
		return nil
	}
	var names []string
	for _, format := range c.formats {
		if format.Matches(in) {
			names = append(names, format.Name)
		}
	}
	return names
}
