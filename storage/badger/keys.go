package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/spicefeed/core"
)

// Key prefixes for different data types
const (
	itemRecordPrefix     = "newsit"
	itemCountKey         = "newsitcnt"
	itemIngestPrefix     = "newsiting"
	itemPublishedPrefix  = "newsitpub"
	itemCategoryPrefix   = "newsitcat"
	itemScorePrefix      = "newsitcv"
	itemTokenPrefix      = "newsittok"
	keywordPostingPrefix = "newskw"
	keywordCountPrefix   = "newskwc"
)

// tokenSep terminates variable-length tokens inside composite keys.
// Tokens are normalized to lowercase printable runes, so a zero byte
// never collides with token content.
const tokenSep = 0x00

// makeItemKey generates a key for an item record by ID.
func makeItemKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", itemRecordPrefix, id))
}

// makeIngestKey generates a composite key for the ingestion-time index.
// Format: prefix:insertedAt:id, BigEndian so lexicographic order is
// chronological with the ID as a deterministic tie-break.
func makeIngestKey(insertedAt time.Time, id core.ID) []byte {
	return makeTimeIDKey(itemIngestPrefix, insertedAt, id)
}

// makePartialIngestKey generates a partial key for ingestion range scans.
func makePartialIngestKey(insertedAt time.Time) []byte {
	return makeTimeKey(itemIngestPrefix, insertedAt)
}

// makePublishedKey generates a composite key for the global published index.
func makePublishedKey(publishedAt time.Time, id core.ID) []byte {
	return makeTimeIDKey(itemPublishedPrefix, publishedAt, id)
}

// makePartialPublishedKey generates a partial key for published range scans.
func makePartialPublishedKey(publishedAt time.Time) []byte {
	return makeTimeKey(itemPublishedPrefix, publishedAt)
}

// makeCategoryKey generates a composite key for the per-category published
// index. Format: prefix:category:publishedAt:id.
func makeCategoryKey(category core.Category, publishedAt time.Time, id core.ID) []byte {
	prefix := makeCategoryPrefix(category)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(publishedAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeCategoryPrefix generates the scan prefix for one category.
func makeCategoryPrefix(category core.Category) []byte {
	prefix := itemCategoryPrefix + ":"
	buf := make([]byte, len(prefix)+1)
	offset := copy(buf, prefix)
	buf[offset] = byte(category)
	return buf
}

// makeScoreKey generates a composite key for the controversy index.
// Format: prefix:score:publishedAt:id. A reverse scan yields highest
// scores first and, within a score, most recently published first.
func makeScoreKey(score int, publishedAt time.Time, id core.ID) []byte {
	prefix := itemScorePrefix + ":"
	buf := make([]byte, len(prefix)+17)
	offset := copy(buf, prefix)
	buf[offset] = byte(score)
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(publishedAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeTokenKey generates a posting key for the inverted text index.
// Format: prefix:token NUL id.
func makeTokenKey(token string, id core.ID) []byte {
	return makeTokenIDKey(itemTokenPrefix, token, id)
}

// makePartialTokenKey generates the posting-list scan prefix for one token.
func makePartialTokenKey(token string) []byte {
	return makeTokenPrefix(itemTokenPrefix, token)
}

// makeKeywordKey generates a posting key for the keyword association index.
func makeKeywordKey(keyword string, id core.ID) []byte {
	return makeTokenIDKey(keywordPostingPrefix, keyword, id)
}

// makeKeywordCountKey generates the reference-count key for a keyword.
func makeKeywordCountKey(keyword string) []byte {
	return append([]byte(keywordCountPrefix+":"), keyword...)
}

func makeTimeIDKey(name string, ts time.Time, id core.ID) []byte {
	prefix := name + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ts.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

func makeTimeKey(name string, ts time.Time) []byte {
	prefix := name + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ts.UnixMicro()))
	return buf
}

func makeTokenIDKey(name, token string, id core.ID) []byte {
	prefix := name + ":"
	buf := make([]byte, len(prefix)+len(token)+9)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], token)
	buf[offset] = tokenSep
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

func makeTokenPrefix(name, token string) []byte {
	prefix := name + ":"
	buf := make([]byte, len(prefix)+len(token)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], token)
	buf[offset] = tokenSep
	return buf
}
