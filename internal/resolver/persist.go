package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cardsync/internal/assignments"
	"cardsync/internal/services"
)

func commandRecord(card CardInfo) assignments.Record {
	return assignments.CommandRecord(card.Mode)
}

func streamRecord(card CardInfo) assignments.Record {
	return assignments.PathRecord(card.Path, card.Mode)
}

// assignAudioTracks promotes the staging directory to its final location and
// stores a record pointing at it.
func (r *Resolver) assignAudioTracks(ctx context.Context) (Event, error) {
	d := r.session.Download
	if d.CurrentTrack != d.TrackCount {
		return EventFailed, r.wrap(services.ErrDownloadFailed, "finish download",
			fmt.Sprintf("only %d of %d tracks present", d.CurrentTrack, d.TrackCount), nil)
	}
	if err := promote(d.StagingPath, d.DestinationPath); err != nil {
		return EventFailed, r.wrap(services.ErrDownloadFailed, "promote staging", "", err)
	}
	r.session.Download.StagingPath = ""
	if err := r.persist(ctx, assignments.PathRecord(d.DestinationPath, r.session.Card.Mode)); err != nil {
		return EventFailed, err
	}
	return EventAssigned, nil
}

// promote replaces destination with staging. An existing destination is moved
// aside first and only removed once staging is in place; a failed swap puts it
// back.
func promote(staging, destination string) error {
	aside := destination + ".replaced"
	if err := os.RemoveAll(aside); err != nil {
		return fmt.Errorf("remove stale %s: %w", aside, err)
	}
	hadPrevious := true
	if err := os.Rename(destination, aside); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move aside %s: %w", destination, err)
		}
		hadPrevious = false
	}
	if err := os.Rename(staging, destination); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(aside, destination); restoreErr != nil {
				return fmt.Errorf("rename %s: %w (restore previous: %v)", staging, err, restoreErr)
			}
		}
		return fmt.Errorf("rename %s: %w", staging, err)
	}
	if hadPrevious {
		if err := os.RemoveAll(aside); err != nil {
			return fmt.Errorf("remove previous %s: %w", aside, err)
		}
	}
	return nil
}

func (r *Resolver) persist(ctx context.Context, record assignments.Record) error {
	value := record.Encode()
	if err := r.store.Put(ctx, r.session.TagID, value); err != nil {
		return r.wrap(services.ErrPersistFailed, "store assignment", "", err)
	}
	r.indicator.IndicateAssigned(ctx, r.session.TagID, r.session.Card.Type.String(), value)
	return nil
}
