package download

// State is where a tracked download stands between grab and library.
type State string

const (
	StateDownloading State = "downloading"
	StateImporting   State = "importing"
	StateImported    State = "imported"
	StateFailed      State = "failed"
	StateWarning     State = "warning"
)

// Terminal reports whether no observation can move the download on.
func (s State) Terminal() bool {
	return s == StateImported || s == StateFailed
}

// Observation is what one reconcile pass learned about a download.
type Observation string

const (
	// ObservedPending means the client has not finished the download.
	ObservedPending Observation = "pending"
	// ObservedUnusablePath means the client reports completion without a
	// usable output path yet.
	ObservedUnusablePath Observation = "unusable_path"
	// ObservedImportable means the download is complete and correlated.
	ObservedImportable Observation = "importable"
	// ObservedBlocked means a warning stops the import until a user acts.
	ObservedBlocked Observation = "blocked"
	// ObservedIncomplete means an import ran but left tracks behind.
	ObservedIncomplete Observation = "incomplete"
	// ObservedImported means every wanted track reached the library.
	ObservedImported Observation = "imported"
	// ObservedClientFailed means the client gave up on the download.
	ObservedClientFailed Observation = "client_failed"
)

// Transition returns the state a download moves to after an observation.
// Terminal states never change.
func Transition(current State, obs Observation) State {
	if current.Terminal() {
		return current
	}
	switch obs {
	case ObservedClientFailed:
		return StateFailed
	case ObservedImported:
		return StateImported
	case ObservedImportable:
		return StateImporting
	case ObservedBlocked:
		return StateWarning
	case ObservedPending, ObservedUnusablePath, ObservedIncomplete:
		return StateDownloading
	}
	if current == "" {
		return StateDownloading
	}
	return current
}
