package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// buildCacheKey returns the composite lru key plus its hash/model parts so
// the db-backed cache can store them as separate columns.
func buildCacheKey(modelName, taskType, text string) (key string, contentHash string, model string) {
	model = strings.TrimSpace(modelName)
	hash := sha256.Sum256([]byte(text))
	contentHash = hex.EncodeToString(hash[:])
	key = strings.Join([]string{model, taskType, contentHash}, ":")
	return key, contentHash, model
}
