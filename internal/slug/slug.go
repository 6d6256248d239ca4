package slug

import (
	"regexp"
	"strings"
	"time"

	"github.com/speps/go-hashids/v2"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

var encoder *hashids.HashID

func init() {
	data := hashids.NewData()
	data.Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	data.MinLength = 6

	var err error
	encoder, err = hashids.NewWithData(data)
	if err != nil {
		panic(err)
	}
}

// Make derives a URL-safe slug from a human title: lower-cased, with runs of
// non-alphanumeric characters collapsed into single hyphens.
func Make(title string) string {
	s := strings.ToLower(title)
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// WithSuffix disambiguates a colliding slug by appending a short hashid of
// the current unix-nano timestamp. Successive calls yield distinct suffixes.
func WithSuffix(s string) string {
	suffix, err := encoder.EncodeInt64([]int64{time.Now().UnixNano()})
	if err != nil {
		// EncodeInt64 only fails on negative input; UnixNano is positive.
		return s
	}
	return s + "-" + suffix
}
