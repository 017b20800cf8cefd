package leadform

import (
	"strconv"
	"strings"
)

// Bucket is one of the fixed ranges offered for the estimated yearly page volume.
type Bucket string

const (
	BucketUpTo1000   Bucket = "0-1000"
	BucketUpTo10000  Bucket = "1000-10000"
	BucketOver10000  Bucket = "10000+"
	OpenEndedVolume         = 100000
	MinimumVolume           = 1000
)

// Buckets lists the selectable ranges in display order.
var Buckets = []Bucket{BucketUpTo1000, BucketUpTo10000, BucketOver10000}

// Label is the text shown next to the bucket in the form.
func (b Bucket) Label() string {
	switch b {
	case BucketUpTo1000:
		return "0 - 1 000 / an"
	case BucketUpTo10000:
		return "1 000 - 10 000 / an"
	case BucketOver10000:
		return "+10 000 / an"
	default:
		return string(b)
	}
}

// Volume is the derived subscription volume. Raw keeps the selection as
// received; Amount is only meaningful when Parsed is true.
type Volume struct {
	Raw    string
	Amount int
	Parsed bool
}

// ParseBucket resolves a selection to its representative integer: the upper
// bound of the range, or OpenEndedVolume for a "+" bucket. A selection whose
// upper bound does not parse is returned unparsed and never validates.
func ParseBucket(raw string) Volume {
	v := Volume{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return v
	}
	if strings.HasSuffix(trimmed, "+") {
		v.Amount = OpenEndedVolume
		v.Parsed = true
		return v
	}
	parts := strings.Split(trimmed, "-")
	n, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil {
		return v
	}
	v.Amount = n
	v.Parsed = true
	return v
}
