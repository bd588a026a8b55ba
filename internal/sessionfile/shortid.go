package sessionfile

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// shortIDFrom derives a compact base36 id from the record's content fields
// plus its occurrence index among identical records. Records that arrive
// without an id (typically hand-written by agents) get the same id on every
// load, so repeated reloads of the same file never look like new activities
// to the merge.
func shortIDFrom(occurrence int, parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		_, _ = h.Write([]byte{'|'})
	}
	_, _ = h.Write([]byte(strconv.Itoa(occurrence)))
	id := strconv.FormatUint(h.Sum64(), 36)
	// trailing 8 chars keep ids short without hurting dispersion
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return id
}
