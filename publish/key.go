package publish

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ObjectKey derives the storage key for an uploaded cover image from the
// upload time (milliseconds) and the client's file name:
// "<millis>-<slug><ext>", or "<millis><ext>" when the name slugs to nothing.
//
// Two uploads of the same file name within one millisecond produce the same
// key. Nothing retries on that; the second upload fails at the storage.
func ObjectKey(now time.Time, filename string) string {
	// Browsers on Windows used to send full paths.
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	ext := cleanExt(path.Ext(filename))
	base := Slugify(strings.TrimSuffix(filename, path.Ext(filename)))
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if base == "" {
		return ms + ext
	}
	return ms + "-" + base + ext
}

func cleanExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

// foldAccents returns a fresh transformer; chains keep per-call buffers and
// must not be shared between goroutines.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Slugify converts a title or file name to a URL-safe slug. Accented letters
// are folded to ASCII ("Campeón" -> "campeon").
func Slugify(s string) string {
	if folded, _, err := transform.String(foldAccents(), s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > 60 {
		out = strings.TrimRight(out[:60], "-")
	}
	return out
}
