// Package guard switches the binaries into test mode when imported by a test,
// so package init paths never dial PostgreSQL or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MEDISTOCK_TEST_MODE") == "" {
			_ = os.Setenv("MEDISTOCK_TEST_MODE", "1")
		}
	})
}
