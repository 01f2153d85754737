// Package loader reads archives of community content into content units.
// Archives are JSON lines files, optionally gzip compressed, holding either
// content units or raw Reddit dump records.
package loader

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
)

const maxLineSize = 4 << 20

// ArchiveFile references one archive. The content is retrieved via the
// associated ArchiveLoader.
type ArchiveFile struct {
	ID       string
	FilePath string
	Loader   ArchiveLoader
}

// ArchiveLoader defines the interface for loading the raw bytes of an
// ArchiveFile. Implementations may load files from disk, cloud storage, or
// other sources.
type ArchiveLoader interface {
	GetFileBytes(ctx context.Context, file ArchiveFile) ([]byte, error)
}

// CacheKey identifies the content of a file for loader caches.
func CacheKey(file ArchiveFile) string {
	return file.ID + ":" + file.FilePath
}

// DecodeOptions control how raw dump records become content units.
type DecodeOptions struct {
	// ExtractFromPosts marks dump posts as extractable. Content units that
	// carry their own flag are not changed.
	ExtractFromPosts bool
	// LinkParents fills empty parent context from the parent unit when it
	// is part of the same archive.
	LinkParents bool
}

// Units loads the file and decodes its content units.
//
// Example:
//
//	file := loader.ArchiveFile{ID: "b1", FilePath: "austinfood/2024-05.jsonl.gz", Loader: s3Loader}
//	units, err := file.Units(ctx, loader.DecodeOptions{LinkParents: true})
func (f *ArchiveFile) Units(ctx context.Context, opts DecodeOptions) ([]common.ContentUnit, error) {
	if f.Loader == nil {
		return nil, fmt.Errorf("archive %s: no loader", f.FilePath)
	}
	raw, err := f.Loader.GetFileBytes(ctx, *f)
	if err != nil {
		return nil, fmt.Errorf("load archive %s: %w", f.FilePath, err)
	}
	r, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", f.FilePath, err)
	}
	units, err := DecodeUnits(r, opts)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", f.FilePath, err)
	}
	return units, nil
}

func decompress(raw []byte) (io.Reader, error) {
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		return zr, nil
	}
	return bytes.NewReader(raw), nil
}

// record is the union of the content unit shape and the Reddit dump shape.
// Fields both shapes share are declared here and shadow the embedded ones.
type record struct {
	common.ContentUnit

	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Body        string          `json:"body"`
	Title       string          `json:"title"`
	Selftext    string          `json:"selftext"`
	RedditPID   string          `json:"parent_id"`
	Score       json.Number     `json:"score"`
	Permalink   string          `json:"permalink"`
	CreatedUTC  json.RawMessage `json:"created_utc"`
	SubredditRD string          `json:"subreddit"`
}

// DecodeUnits reads one JSON object per line. Blank lines are ignored and
// a malformed line fails the whole archive with its line number.
func DecodeUnits(r io.Reader, opts DecodeOptions) ([]common.ContentUnit, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var units []common.ContentUnit
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		u, err := rec.unit(opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		units = append(units, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}

	if opts.LinkParents {
		linkParents(units)
	}
	return units, nil
}

func (rec record) unit(opts DecodeOptions) (common.ContentUnit, error) {
	if rec.SourceType != "" {
		u := rec.ContentUnit
		u.Subreddit = rec.SubredditRD
		if u.SourceType != common.SourceTypePost && u.SourceType != common.SourceTypeComment {
			return u, fmt.Errorf("unknown source_type %q", u.SourceType)
		}
		if u.SourceID == "" {
			return u, fmt.Errorf("missing source_id")
		}
		u.ParentID = rec.RedditPID
		return u, nil
	}
	return rec.dumpUnit(opts)
}

// dumpUnit converts a Reddit dump record. Comments carry a body, posts a
// title and selftext.
func (rec record) dumpUnit(opts DecodeOptions) (common.ContentUnit, error) {
	if rec.ID == "" {
		return common.ContentUnit{}, fmt.Errorf("missing id")
	}
	u := common.ContentUnit{
		SourceID:  rec.ID,
		Subreddit: rec.SubredditRD,
		ParentID:  trimKind(rec.RedditPID),
	}
	if rec.Score != "" {
		score, err := rec.Score.Float64()
		if err != nil {
			return u, fmt.Errorf("score %s: %w", rec.Score, err)
		}
		u.Upvotes = int(score)
	}
	if rec.Permalink != "" {
		u.SourceURL = "https://www.reddit.com" + rec.Permalink
	}
	created, err := parseCreated(rec.CreatedUTC)
	if err != nil {
		return u, err
	}
	u.CreatedAt = created

	switch {
	case rec.Body != "" || strings.HasPrefix(rec.Name, "t1_"):
		u.SourceType = common.SourceTypeComment
		u.Text = rec.Body
	case rec.Title != "" || strings.HasPrefix(rec.Name, "t3_"):
		u.SourceType = common.SourceTypePost
		u.Text = strings.TrimSpace(rec.Title + "\n\n" + rec.Selftext)
		u.ExtractFromPost = opts.ExtractFromPosts
		u.ParentID = ""
	default:
		return u, fmt.Errorf("record %s is neither post nor comment", rec.ID)
	}
	if isRemoved(u.Text) {
		u.Text = ""
	}
	return u, nil
}

// trimKind strips the Reddit fullname prefix ("t1_", "t3_").
func trimKind(id string) string {
	if len(id) > 3 && id[0] == 't' && id[2] == '_' {
		return id[3:]
	}
	return id
}

func isRemoved(text string) bool {
	t := strings.TrimSpace(text)
	return t == "[deleted]" || t == "[removed]"
}

// parseCreated accepts unix seconds as number or string.
func parseCreated(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	f, err := strconv.ParseFloat(strings.Trim(string(raw), `"`), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("created_utc %s: %w", raw, err)
	}
	return time.Unix(int64(f), 0).UTC(), nil
}

// linkParents copies the text of a parent unit into the parent context of
// its children when the archive did not provide one.
func linkParents(units []common.ContentUnit) {
	text := make(map[string]string, len(units))
	for _, u := range units {
		if u.SourceID != "" && u.Text != "" {
			text[u.SourceID] = u.Text
		}
	}
	for i := range units {
		u := &units[i]
		if u.ParentContextText != "" || u.ParentID == "" {
			continue
		}
		if t, ok := text[u.ParentID]; ok {
			u.ParentContextText = t
		}
	}
}
