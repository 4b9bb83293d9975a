package domain

// Metadata is the per-(location, date) bookkeeping record: how big a day's
// history is raw and as stored, and when its source was last modified. Size
// and mtime together drive change detection — a loader that sees matching
// values may skip the day.
type Metadata struct {
	Date      Date
	Size      int64
	StoreSize int64
	MTime     int64 // source modification time, UTC epoch seconds
}

// Unchanged reports whether a candidate's facts match the stored record,
// meaning a re-load may skip the day.
func (m Metadata) Unchanged(size, mtime int64) bool {
	return m.Size == size && m.MTime == mtime
}

// Summary aggregates a location's history storage statistics.
type Summary struct {
	Alias       string
	Count       int
	Size        int64 // raw bytes across all histories
	StoreSize   int64 // bytes as persisted, post-compression
	OverallSize int64 // backing store footprint (archive file or table estimate)
}
