package testing

import (
	"os"
	"sync"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("MERIDIAN_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}
