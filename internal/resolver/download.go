package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"cardsync/internal/logging"
	"cardsync/internal/services"
	"cardsync/internal/textutil"
)

// downloadNextTrack fetches exactly one track into the staging directory.
// When every track is present it reports EventDownloadsComplete instead.
func (r *Resolver) downloadNextTrack(ctx context.Context) (Event, error) {
	d := &r.session.Download
	if d.CurrentTrack >= d.TrackCount {
		return EventDownloadsComplete, nil
	}
	track := r.session.Card.Tracks[d.CurrentTrack]
	target, size, err := r.fetchTrack(ctx, d.StagingPath, d.CurrentTrack, track)
	if err != nil {
		return EventFailed, r.wrap(services.ErrDownloadFailed, "fetch track", fmt.Sprintf("track %d of %d", d.CurrentTrack+1, d.TrackCount), err)
	}
	d.CurrentTrack++
	r.recorder.TrackDownloaded(size)
	r.publish()
	logging.WithContext(ctx, r.logger).Info("track downloaded",
		logging.Int("track", d.CurrentTrack),
		logging.Int("track_count", d.TrackCount),
		logging.String("file", filepath.Base(target)),
		logging.Int64("bytes", size),
		logging.String(logging.FieldEventType, "track_downloaded"),
	)
	return EventTrackDownloaded, nil
}

func (r *Resolver) fetchTrack(ctx context.Context, dir string, index int, track Track) (string, int64, error) {
	base := trackBaseName(index, track.Name)
	partial := filepath.Join(dir, base+".part")
	file, err := os.Create(partial)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", partial, err)
	}
	status, size, fetchErr := r.transport.Fetch(ctx, track.Path, file)
	closeErr := file.Close()
	if fetchErr != nil {
		return "", size, fetchErr
	}
	if status != http.StatusOK {
		return "", size, fmt.Errorf("server returned status %d for %s", status, track.Path)
	}
	if closeErr != nil {
		return "", size, fmt.Errorf("close %s: %w", partial, closeErr)
	}
	if size == 0 {
		return "", 0, errors.New("track body is empty")
	}

	ext := extensionFromPath(track.Path)
	if ext == "" {
		if mtype, err := mimetype.DetectFile(partial); err == nil {
			ext = mtype.Extension()
		}
	}
	target := filepath.Join(dir, base+ext)
	if err := os.Rename(partial, target); err != nil {
		return "", size, fmt.Errorf("rename %s: %w", partial, err)
	}
	return target, size, nil
}

// trackBaseName keeps files in card order when sorted by name.
func trackBaseName(index int, name string) string {
	clean := textutil.SanitizeFileName(name)
	if clean == "" {
		return fmt.Sprintf("%03d", index+1)
	}
	return fmt.Sprintf("%03d-%s", index+1, clean)
}

// extensionFromPath returns a short alphanumeric extension from the URL path
// of a track reference, or "" when none is usable.
func extensionFromPath(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
