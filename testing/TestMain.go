// Package testing prepares the process environment for package tests. Import
// it for side effects from _test.go files that load configuration or start
// binaries.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var testDefaults = map[string]string{
	"CAMPUSDESK_TEST_MODE": "1",
	"API_BASE_URL":         "http://127.0.0.1:0",
	"JWT_SECRET":           "test-secret",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range testDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
