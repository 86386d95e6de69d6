package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// lineSentinel stands in for an unknown line identifier so that fingerprints
// from capture paths that cannot see the SIM slot still line up.
const lineSentinel = "-"

// Fingerprint hashes sender, body, the one-minute bucket of the receive time,
// and the line identifier. The minute bucket absorbs clock skew between the
// primary capture path and reconciliation while keeping genuinely different
// messages apart.
func Fingerprint(sender, body string, receivedAt time.Time, lineID string) string {
	if lineID == "" {
		lineID = lineSentinel
	}
	bucket := receivedAt.Unix() / 60
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write([]byte(body))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(bucket, 10)))
	h.Write([]byte{0})
	h.Write([]byte(lineID))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
