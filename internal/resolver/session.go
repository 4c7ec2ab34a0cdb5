package resolver

import (
	"strings"
	"time"
)

// CardType is the server-declared classification of a card.
type CardType int

const (
	CardInvalid CardType = iota
	CardCommand
	CardStream
	CardAudioTracks
)

func (t CardType) String() string {
	switch t {
	case CardCommand:
		return "command"
	case CardStream:
		return "stream"
	case CardAudioTracks:
		return "audiotracks"
	default:
		return "invalid"
	}
}

// ParseCardType accepts the type names used by the card server, case
// insensitively, and their numeric codes 1 to 3.
func ParseCardType(value string) CardType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "command", "1":
		return CardCommand
	case "stream", "2":
		return CardStream
	case "audiotracks", "audio_tracks", "3":
		return CardAudioTracks
	default:
		return CardInvalid
	}
}

// Track is one downloadable file of an audio tracks card.
type Track struct {
	Name string
	Path string
}

// CardInfo is the decoded card metadata.
type CardInfo struct {
	Type   CardType
	Mode   uint8
	Path   string
	Name   string
	Tracks []Track
}

// DownloadInfo tracks progress through CardInfo.Tracks.
type DownloadInfo struct {
	CurrentTrack    int
	TrackCount      int
	DestinationPath string
	StagingPath     string
}

// Session is the working state of one resolution. It is never persisted.
type Session struct {
	State         State
	TagID         string
	AuthToken     string
	CorrelationID string
	StartedAt     time.Time
	Card          CardInfo
	Download      DownloadInfo
}

func (s Session) clone() Session {
	out := s
	if s.Card.Tracks != nil {
		out.Card.Tracks = append([]Track(nil), s.Card.Tracks...)
	}
	return out
}

// Status is a point-in-time view of the resolver for status endpoints.
type Status struct {
	State          string    `json:"state"`
	TagID          string    `json:"tag_id,omitempty"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	CardType       string    `json:"card_type,omitempty"`
	CurrentTrack   int       `json:"current_track"`
	TrackCount     int       `json:"track_count"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	LastTagID      string    `json:"last_tag_id,omitempty"`
	LastOutcome    string    `json:"last_outcome,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastFinishedAt time.Time `json:"last_finished_at,omitzero"`
	Resolved       int64     `json:"resolved"`
	Failed         int64     `json:"failed"`
}
