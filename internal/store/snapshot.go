package store

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// Snapshot is a fingerprint of the order table at one instant: an
// opaque content tag plus the most recent modification time in epoch
// milliseconds. Two snapshots over an unchanged table are identical.
type Snapshot struct {
	Tag          string
	LastModified int64
}

// Oracle derives freshness validators for the order collection from a
// cheap aggregate over the order table.
type Oracle struct {
	rows ListingRows
}

// NewOracle constructs a freshness oracle over the given row source.
func NewOracle(rows ListingRows) (*Oracle, error) {
	if rows == nil {
		return nil, errors.New("store: row source is required")
	}
	return &Oracle{rows: rows}, nil
}

// Current re-queries the fingerprint aggregate and derives a snapshot.
// An empty table yields the epoch as its last-modified time. Callers
// needing one stable value per request must call once and reuse it.
func (o *Oracle) Current(ctx context.Context) (Snapshot, error) {
	rowCount, maxUpdatedAtSeconds, err := o.rows.OrderTableFingerprint(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	// Timestamps are stored at second resolution, so the millisecond
	// value round-trips exactly through a Last-Modified header.
	lastModified := maxUpdatedAtSeconds * 1000
	basis := fmt.Sprintf("%d|%d", rowCount, lastModified)
	digest := sha256.Sum256([]byte(basis))
	tag := `"` + base64.RawURLEncoding.EncodeToString(digest[:]) + `"`
	return Snapshot{Tag: tag, LastModified: lastModified}, nil
}

// MatchesConditional evaluates client validators against a snapshot.
// ifNoneMatch is the raw If-None-Match value or empty when absent;
// ifModifiedSince is epoch milliseconds or negative when absent. When
// the client sends both validators, both must agree before a cached
// representation counts as fresh.
func MatchesConditional(ifNoneMatch string, ifModifiedSince int64, snapshot Snapshot) bool {
	tagPresent := ifNoneMatch != ""
	timePresent := ifModifiedSince >= 0
	tagMatch := tagPresent && ifNoneMatch == snapshot.Tag
	timeMatch := timePresent && snapshot.LastModified <= ifModifiedSince

	switch {
	case tagPresent && timePresent:
		return tagMatch && timeMatch
	case tagPresent:
		return tagMatch
	case timePresent:
		return timeMatch
	default:
		return false
	}
}
