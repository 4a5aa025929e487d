package utils

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// KeyDigest 計算快取鍵的固定寬度十六進制摘要，用作磁碟檔名
func KeyDigest(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
