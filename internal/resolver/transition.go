package resolver

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{StateIdle, EventNone}:                       StateIdle,
	{StateIdle, EventTagReceived}:                StateLogin,
	{StateLogin, EventLoginSucceeded}:            StateCheckTag,
	{StateCheckTag, EventTagFound}:               StateGatherCardInfo,
	{StateGatherCardInfo, EventCommandAssigned}:  StateIdle,
	{StateGatherCardInfo, EventStreamAssigned}:   StateIdle,
	{StateGatherCardInfo, EventAudioTracksCard}:  StateDownloadFiles,
	{StateDownloadFiles, EventTrackDownloaded}:   StateDownloadFiles,
	{StateDownloadFiles, EventDownloadsComplete}: StateDownloadFilesFinished,
	{StateDownloadFilesFinished, EventAssigned}:  StateIdle,
}

// Transition returns the state that follows event in state from. EventFailed
// leads to Idle from any state. ok is false for pairs the table does not
// define.
func Transition(from State, event Event) (State, bool) {
	if event == EventFailed {
		if _, known := stateNames[from]; !known {
			return StateIdle, false
		}
		return StateIdle, true
	}
	next, ok := transitions[transitionKey{from: from, event: event}]
	if !ok {
		return StateIdle, false
	}
	return next, true
}

// completes reports whether the transition ends a successful resolution.
func completes(from State, event Event) bool {
	switch {
	case from == StateGatherCardInfo && (event == EventCommandAssigned || event == EventStreamAssigned):
		return true
	case from == StateDownloadFilesFinished && event == EventAssigned:
		return true
	default:
		return false
	}
}
