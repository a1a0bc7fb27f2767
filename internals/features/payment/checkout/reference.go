package checkout

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Reference: grant-<unix ms>-<0..999999>
func NewReference(now time.Time, rnd func(n int) int) string {
	return fmt.Sprintf("grant-%d-%d", now.UnixMilli(), rnd(1000000))
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func defaultRand(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}

// SplitName: kata pertama = first name, sisanya = last name (NFC).
func SplitName(full string) (first, last string) {
	parts := strings.Fields(norm.NFC.String(full))
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
