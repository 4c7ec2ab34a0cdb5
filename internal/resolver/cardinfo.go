package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cardsync/internal/metadata"
	"cardsync/internal/services"
	"cardsync/internal/services/cardserver"
	"cardsync/internal/textutil"
)

// gatherCardInfo fetches the card metadata and dispatches on its type.
// Command and stream cards are persisted immediately; audio track cards get a
// fresh staging directory and move on to downloading.
func (r *Resolver) gatherCardInfo(ctx context.Context) (Event, error) {
	r.session.Card = CardInfo{}
	r.session.Download = DownloadInfo{}

	status, err := r.transport.Get(ctx, cardserver.CardInfoPath(r.session.TagID))
	if err != nil {
		return EventFailed, r.wrap(services.ErrUnsupportedCardType, "fetch card info", "request failed", err)
	}
	if status != http.StatusOK {
		return EventFailed, r.wrap(services.ErrUnsupportedCardType, "fetch card info", fmt.Sprintf("server returned status %d", status), nil)
	}
	obj, err := metadata.Parse(r.transport.ResponseBody(), r.settings.MaxResponseBytes)
	if err != nil {
		return EventFailed, r.wrap(services.ErrUnsupportedCardType, "decode card info", "", parseFailure(err))
	}
	card, err := DecodeCardInfo(obj)
	if err != nil {
		return EventFailed, r.wrap(services.ErrUnsupportedCardType, "decode card info", "", err)
	}
	r.session.Card = card

	switch card.Type {
	case CardCommand:
		if err := r.persist(ctx, commandRecord(card)); err != nil {
			return EventFailed, err
		}
		return EventCommandAssigned, nil
	case CardStream:
		if err := r.persist(ctx, streamRecord(card)); err != nil {
			return EventFailed, err
		}
		return EventStreamAssigned, nil
	case CardAudioTracks:
		if err := r.prepareStaging(); err != nil {
			return EventFailed, r.wrap(services.ErrDownloadFailed, "prepare staging", "", err)
		}
		return EventAudioTracksCard, nil
	default:
		return EventFailed, r.wrap(services.ErrUnsupportedCardType, "dispatch card", "card type is invalid", nil)
	}
}

var (
	errUnknownCardType = errors.New("unknown card type")
	errMissingPath     = errors.New("stream card has no path")
	errNoTracks        = errors.New("audio tracks card has no tracks")
	errBadMode         = errors.New("mode must be between 0 and 255")
	errBadTrack        = errors.New("track has no path")
)

// DecodeCardInfo maps a card info object to CardInfo. Any inconsistency
// yields an error and a CardInfo of type CardInvalid.
func DecodeCardInfo(obj metadata.Object) (CardInfo, error) {
	var card CardInfo
	if s, ok := obj.String("type"); ok {
		card.Type = ParseCardType(s)
	} else if n, ok := obj.Int("type"); ok {
		card.Type = ParseCardType(strconv.Itoa(n))
	}
	if card.Type == CardInvalid {
		return CardInfo{}, errUnknownCardType
	}
	if obj.Has("mode") {
		mode, ok := obj.Uint8("mode")
		if !ok {
			return CardInfo{}, errBadMode
		}
		card.Mode = mode
	}
	card.Name, _ = obj.String("name")
	card.Name = strings.TrimSpace(card.Name)
	card.Path, _ = obj.String("path")
	card.Path = strings.TrimSpace(card.Path)

	switch card.Type {
	case CardCommand:
		card.Path = ""
	case CardStream:
		if card.Path == "" {
			return CardInfo{}, errMissingPath
		}
	case CardAudioTracks:
		tracks, err := decodeTracks(obj)
		if err != nil {
			return CardInfo{}, err
		}
		card.Tracks = tracks
	}
	return card, nil
}

func decodeTracks(obj metadata.Object) ([]Track, error) {
	items, ok := obj.Objects("tracks")
	if !ok || len(items) == 0 {
		return nil, errNoTracks
	}
	tracks := make([]Track, 0, len(items))
	for i, item := range items {
		path, _ := item.String("path")
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, fmt.Errorf("track %d: %w", i+1, errBadTrack)
		}
		name, _ := item.String("name")
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Track %d", i+1)
		}
		tracks = append(tracks, Track{Name: name, Path: path})
	}
	return tracks, nil
}

// prepareStaging creates an empty staging directory next to the destination.
func (r *Resolver) prepareStaging() error {
	destination := filepath.Join(r.settings.StagingDir, destinationName(r.session.Card.Name, r.session.TagID))
	staging := destination + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear %s: %w", staging, err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", staging, err)
	}
	r.session.Download = DownloadInfo{
		TrackCount:      len(r.session.Card.Tracks),
		DestinationPath: destination,
		StagingPath:     staging,
	}
	return nil
}

// destinationName keys the directory by tag so two cards sharing a name never
// overwrite each other.
func destinationName(cardName, tagID string) string {
	name := textutil.SanitizeFileName(cardName)
	if name == "" {
		return tagID
	}
	return name + "_" + tagID
}
