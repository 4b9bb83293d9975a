// Package domain models the weather history data that every storage backend
// shares: locations, daily observation histories, per-day bookkeeping
// metadata, and civil dates.
//
// # Locations
//
// A location is identified two ways. The name ("Boise, ID") is what people
// see; the alias ("boise_id") is the storage key and must be safe to use as
// a filename component. Both are globally unique. Coordinates are kept as
// decimal strings rather than floats so the precision of the source data
// survives round trips through storage. The tz field holds an IANA timezone
// name ("America/Boise").
//
// # Histories
//
// A History holds one calendar day of observations for one location. Every
// observation field is optional because upstream providers omit fields
// freely; a nil pointer means "not reported" and is stored as SQL NULL or an
// absent JSON key, never as zero. Sunrise and sunset are UTC epoch seconds.
//
// The JSON form produced by [History.Encode] is the wire format for archive
// entries and for the document backend's payload column. Decoding tolerates
// unknown keys so documents written by newer versions stay readable.
//
// # Metadata
//
// Metadata records the raw size, stored size, and source modification time
// of one (location, date) history. It exists for change detection: a loader
// comparing a candidate's size and mtime against stored metadata can tell
// whether the day needs rewriting. It is not an audit trail.
//
// # Errors
//
// The error sentinels here form the failure taxonomy every backend reports
// through. Callers dispatch with errors.Is; backends wrap with %w and never
// collapse "not found" into "storage broken".
package domain
