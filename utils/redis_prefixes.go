package utils

import (
	"fmt"
)

const (
	redisFeeLatestPrefix  = "simpleweb3:fees:%s:latest"  // Per-chain most recent fee snapshot
	redisFeeHistoryPrefix = "simpleweb3:fees:%s:history" // Per-chain list of recent snapshots, newest first
)

func RedisFeeLatestKey(chain string) string {
	return fmt.Sprintf(redisFeeLatestPrefix, chain)
}

func RedisFeeHistoryKey(chain string) string {
	return fmt.Sprintf(redisFeeHistoryPrefix, chain)
}
