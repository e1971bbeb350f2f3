package memory

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateID builds an identifier like cache_42_1718000000000_k3v9x0qa from a
// prefix, an optional source token and the current time. The prefix is used
// verbatim. Uniqueness is probabilistic.
func GenerateID(prefix, source string) string {
	return newID(prefix, source, time.Now())
}

func newID(prefix, source string, now time.Time) string {
	var b strings.Builder
	b.WriteString(prefix)
	if source != "" {
		b.WriteString(source)
		b.WriteByte('_')
	}
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	b.WriteString(randomSuffix(8))
	return b.String()
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i, v := range buf {
		buf[i] = idAlphabet[int(v)%len(idAlphabet)]
	}
	return string(buf)
}

func formatTaskID(id int64) string {
	return strconv.FormatInt(id, 10)
}
