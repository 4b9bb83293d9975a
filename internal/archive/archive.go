// Package archive reads and writes the per-location history containers.
//
// A container is an ordinary zip file named <alias>.zip holding one JSON
// document per calendar day, under entry names like
// "boise_id/boise_id-20200101.json". Keeping the format plain zip means any
// archive written by an older version, or by hand, stays readable.
//
// Replacement writes never touch the existing container in place: the new
// container is built in a temp file beside the original and atomically
// renamed over it, so a crash mid-write leaves every committed entry intact.
//
// The codec is agnostic to the JSON inside an entry; serialization belongs
// to the caller.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archive/zip"

	"github.com/klauspost/compress/flate"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// Entry pairs a date with its serialized history document.
type Entry struct {
	Date  domain.Date
	Data  []byte
	MTime int64 // source modification time, UTC epoch seconds
}

// Archive is the handle to one location's container. It carries no open file
// state; every operation opens, works, and closes. A handle must not be
// shared across goroutines while writes are in flight.
type Archive struct {
	alias string
	path  string
}

// New builds a handle for the location's container under dir. No I/O occurs
// until an operation runs.
func New(dir, alias string) *Archive {
	return &Archive{alias: alias, path: filepath.Join(dir, alias+".zip")}
}

// Path returns the container's filesystem path.
func (a *Archive) Path() string { return a.path }

// Exists reports whether the container file is present.
func (a *Archive) Exists() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

// List returns the dates of every entry, ascending.
func (a *Archive) List() ([]domain.Date, error) {
	r, err := a.reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dates := make([]domain.Date, 0, len(r.File))
	for _, f := range r.File {
		date, err := a.entryDate(f.Name)
		if err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	domain.SortDates(dates)
	return dates, nil
}

// Read returns the JSON document stored for date.
func (a *Archive) Read(date domain.Date) ([]byte, error) {
	r, err := a.reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	f := a.find(r, date)
	if f == nil {
		return nil, fmt.Errorf("archive %s has no entry for %s: %w", a.alias, date, domain.ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive %s entry %s: %v: %w", a.alias, date, err, domain.ErrCorruptArchive)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive %s entry %s: %v: %w", a.alias, date, err, domain.ErrCorruptArchive)
	}
	return data, nil
}

// EntryInfo returns a date's bookkeeping facts straight from the zip central
// directory, without decompressing the entry.
func (a *Archive) EntryInfo(date domain.Date) (domain.Metadata, error) {
	r, err := a.reader()
	if err != nil {
		return domain.Metadata{}, err
	}
	defer r.Close()

	f := a.find(r, date)
	if f == nil {
		return domain.Metadata{}, fmt.Errorf("archive %s has no entry for %s: %w", a.alias, date, domain.ErrNotFound)
	}
	return entryMetadata(f, date), nil
}

// Summary walks the central directory and totals the entry sizes. The
// overall size is the container file's own footprint.
func (a *Archive) Summary() (domain.Summary, error) {
	r, err := a.reader()
	if err != nil {
		return domain.Summary{}, err
	}
	defer r.Close()

	summary := domain.Summary{Alias: a.alias}
	for _, f := range r.File {
		if _, err := a.entryDate(f.Name); err != nil {
			return domain.Summary{}, err
		}
		summary.Count++
		summary.Size += int64(f.UncompressedSize64)
		summary.StoreSize += int64(f.CompressedSize64)
	}
	if info, err := os.Stat(a.path); err == nil {
		summary.OverallSize = info.Size()
	}
	return summary, nil
}

// Write stores data as the entry for date, replacing any existing entry, and
// creates the container when absent. It returns the entry's metadata as
// persisted.
func (a *Archive) Write(date domain.Date, data []byte, mtime int64) (domain.Metadata, error) {
	err := a.rebuild(func(existing map[domain.Date]bool) []Entry {
		return []Entry{{Date: date, Data: data, MTime: mtime}}
	})
	if err != nil {
		return domain.Metadata{}, err
	}
	return a.EntryInfo(date)
}

// WriteAll stores every entry in one container rebuild, replacing dates that
// already exist. Much cheaper than repeated Write calls.
func (a *Archive) WriteAll(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return a.rebuild(func(map[domain.Date]bool) []Entry { return entries })
}

// reader opens the container, mapping the failure modes onto the shared
// taxonomy and registering the faster flate implementation.
func (a *Archive) reader() (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(a.path)
	switch {
	case err == nil:
		r.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
			return flate.NewReader(in)
		})
		return r, nil
	case os.IsNotExist(err):
		return nil, fmt.Errorf("archive for %s does not exist: %w", a.alias, domain.ErrNotFound)
	case errors.Is(err, zip.ErrFormat):
		return nil, fmt.Errorf("archive %s is not readable: %w", a.alias, domain.ErrCorruptArchive)
	default:
		return nil, fmt.Errorf("open archive %s: %v: %w", a.alias, err, domain.ErrStorage)
	}
}

func (a *Archive) find(r *zip.ReadCloser, date domain.Date) *zip.File {
	name := a.entryName(date)
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// entryName builds the container-internal name for a date.
func (a *Archive) entryName(date domain.Date) string {
	return fmt.Sprintf("%s/%s-%04d%02d%02d.json", a.alias, a.alias, date.Year, date.Month, date.Day)
}

// entryDate extracts the date embedded in an entry name. A name that does
// not follow the naming discipline marks the container corrupt.
func (a *Archive) entryDate(name string) (domain.Date, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".json")
	if i := strings.LastIndex(base, "-"); i >= 0 {
		base = base[i+1:]
	}
	if t, err := time.Parse("20060102", base); err == nil {
		return domain.DateOf(t), nil
	}
	return domain.Date{}, fmt.Errorf("archive %s has malformed entry %q: %w", a.alias, name, domain.ErrCorruptArchive)
}

func entryMetadata(f *zip.File, date domain.Date) domain.Metadata {
	return domain.Metadata{
		Date:      date,
		Size:      int64(f.UncompressedSize64),
		StoreSize: int64(f.CompressedSize64),
		MTime:     f.Modified.UTC().Unix(),
	}
}

// rebuild writes a fresh container holding the current entries with updates
// applied, then renames it into place. existing dates are offered to the
// callback purely so it can decide replacements; today's callers replace
// unconditionally.
func (a *Archive) rebuild(updatesFn func(existing map[domain.Date]bool) []Entry) error {
	var r *zip.ReadCloser
	if a.Exists() {
		var err error
		if r, err = a.reader(); err != nil {
			return err
		}
		defer func() {
			if r != nil {
				r.Close()
			}
		}()
	}

	existing := map[domain.Date]bool{}
	if r != nil {
		for _, f := range r.File {
			date, err := a.entryDate(f.Name)
			if err != nil {
				return err
			}
			existing[date] = true
		}
	}
	updates := updatesFn(existing)
	replaced := make(map[domain.Date]bool, len(updates))
	for _, e := range updates {
		replaced[e.Date] = true
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %v: %w", err, domain.ErrStorage)
	}
	tmp, err := os.CreateTemp(dir, a.alias+"-*.zip.tmp")
	if err != nil {
		return fmt.Errorf("create archive temp file: %v: %w", err, domain.ErrStorage)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := zip.NewWriter(tmp)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	// Carry over entries that are not being replaced, raw, without a
	// decompress/recompress cycle.
	if r != nil {
		for _, f := range r.File {
			date, _ := a.entryDate(f.Name)
			if replaced[date] {
				continue
			}
			if err := w.Copy(f); err != nil {
				w.Close()
				return fmt.Errorf("carry over archive %s entry %s: %v: %w", a.alias, f.Name, err, domain.ErrStorage)
			}
		}
	}

	for _, e := range updates {
		hdr := &zip.FileHeader{
			Name:     a.entryName(e.Date),
			Method:   zip.Deflate,
			Modified: time.Unix(e.MTime, 0).UTC(),
		}
		entry, err := w.CreateHeader(hdr)
		if err == nil {
			_, err = entry.Write(e.Data)
		}
		if err != nil {
			w.Close()
			return fmt.Errorf("write archive %s entry %s: %v: %w", a.alias, e.Date, err, domain.ErrStorage)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finish archive %s: %v: %w", a.alias, err, domain.ErrStorage)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync archive %s: %v: %w", a.alias, err, domain.ErrStorage)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive %s: %v: %w", a.alias, err, domain.ErrStorage)
	}
	if r != nil {
		r.Close()
		r = nil
	}
	if err := os.Rename(tmp.Name(), a.path); err != nil {
		return fmt.Errorf("replace archive %s: %v: %w", a.alias, err, domain.ErrStorage)
	}
	return nil
}

// Remove deletes the container file. Missing is not an error.
func (a *Archive) Remove() error {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove archive %s: %v: %w", a.alias, err, domain.ErrStorage)
	}
	return nil
}
