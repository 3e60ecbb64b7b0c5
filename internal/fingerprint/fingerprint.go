// Package fingerprint derives a stable content hash from an error's
// category, event, message, and code location. The fingerprint is a
// classifier key, not a security primitive; collision tolerance is
// acceptable.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/opsguard/errorpilot/internal/model"
)

// Of computes the fingerprint for an ErrorReport. Intentionally ignores
// StackTrace and Context so that the same bug reported with different
// incidental context still dedupes to one fingerprint.
func Of(e model.ErrorReport) string {
	h := sha256.New()
	h.Write([]byte(e.Category))
	h.Write([]byte(":"))
	h.Write([]byte(e.Event))
	h.Write([]byte(":"))
	h.Write([]byte(e.Message))
	h.Write([]byte(":"))
	h.Write([]byte(e.CodeLocation))
	return hex.EncodeToString(h.Sum(nil))
}
