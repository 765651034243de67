// Package testhelpers provides shared test utilities for mpool.
package testhelpers

import (
	"sync"
	"testing"

	"go.uber.org/goleak"
)

type isolationManager struct {
	mu           sync.Mutex
	activeTest   string
	cleanupFuncs []func()
}

var globalIsolation = &isolationManager{}

// IsolateTest runs testFunc under goleak and fails if another isolated
// test is already active, catching accidental parallel runs over shared
// module state (the global pool is a package-level singleton).
func IsolateTest(t *testing.T, name string, testFunc func(t *testing.T)) {
	globalIsolation.mu.Lock()
	if globalIsolation.activeTest != "" {
		globalIsolation.mu.Unlock()
		t.Fatalf("test isolation violation: %q already running", globalIsolation.activeTest)
	}
	globalIsolation.activeTest = name
	globalIsolation.mu.Unlock()

	defer func() {
		globalIsolation.mu.Lock()
		cleanups := globalIsolation.cleanupFuncs
		globalIsolation.cleanupFuncs = nil
		globalIsolation.activeTest = ""
		globalIsolation.mu.Unlock()

		for _, c := range cleanups {
			c()
		}
		goleak.VerifyNone(t)
	}()

	testFunc(t)
}

// RegisterCleanup queues a function to run after the active isolated test.
func RegisterCleanup(cleanup func()) {
	globalIsolation.mu.Lock()
	defer globalIsolation.mu.Unlock()
	globalIsolation.cleanupFuncs = append(globalIsolation.cleanupFuncs, cleanup)
}
