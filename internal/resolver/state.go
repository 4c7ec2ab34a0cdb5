package resolver

// State is a resolution state machine state.
type State int

const (
	StateIdle State = iota
	StateLogin
	StateCheckTag
	StateGatherCardInfo
	StateDownloadFiles
	StateDownloadFilesFinished
)

var stateNames = map[State]string{
	StateIdle:                  "idle",
	StateLogin:                 "login",
	StateCheckTag:              "check_tag",
	StateGatherCardInfo:        "gather_card_info",
	StateDownloadFiles:         "download_files",
	StateDownloadFilesFinished: "download_files_finished",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// AllStates lists every state in declaration order.
func AllStates() []State {
	return []State{
		StateIdle,
		StateLogin,
		StateCheckTag,
		StateGatherCardInfo,
		StateDownloadFiles,
		StateDownloadFilesFinished,
	}
}

// Event is the result of a state action.
type Event int

const (
	EventNone Event = iota
	EventTagReceived
	EventLoginSucceeded
	EventTagFound
	EventCommandAssigned
	EventStreamAssigned
	EventAudioTracksCard
	EventTrackDownloaded
	EventDownloadsComplete
	EventAssigned
	EventFailed
)

var eventNames = map[Event]string{
	EventNone:              "none",
	EventTagReceived:       "tag_received",
	EventLoginSucceeded:    "login_succeeded",
	EventTagFound:          "tag_found",
	EventCommandAssigned:   "command_assigned",
	EventStreamAssigned:    "stream_assigned",
	EventAudioTracksCard:   "audio_tracks_card",
	EventTrackDownloaded:   "track_downloaded",
	EventDownloadsComplete: "downloads_complete",
	EventAssigned:          "assigned",
	EventFailed:            "failed",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}
