package quality

import "fmt"

// Revision distinguishes propers, repacks and real releases of the same quality.
type Revision struct {
	Version  int
	Real     int
	IsRepack bool
}

// DefaultRevision is the revision of a plain release.
func DefaultRevision() Revision { return Revision{Version: 1} }

// Compare orders revisions by version then real count.
func (r Revision) Compare(other Revision) int {
	if c := compareInt(r.Version, other.Version); c != 0 {
		return c
	}
	return compareInt(r.Real, other.Real)
}

func (r Revision) String() string {
	if r.Real > 0 {
		return fmt.Sprintf("v%d real%d", r.Version, r.Real)
	}
	return fmt.Sprintf("v%d", r.Version)
}

// Model is a quality together with its revision.
type Model struct {
	Quality  Quality
	Revision Revision
}

// NewModel returns a model with the default revision.
func NewModel(q Quality) Model {
	return Model{Quality: q, Revision: DefaultRevision()}
}

func (m Model) String() string {
	if m.Revision.Version > 1 || m.Revision.Real > 0 {
		return m.Quality.Name + " " + m.Revision.String()
	}
	return m.Quality.Name
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
