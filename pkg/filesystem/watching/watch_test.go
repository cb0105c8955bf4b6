package watching

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pathwatch-io/pathwatch/pkg/filesystem"
)

const (
	// timeBetweenOperations is the time to wait between file operations so
	// that watch extension can complete before dependent operations occur.
	timeBetweenOperations = time.Second

	// maximumEventWaitTime is the maximum amount of time that these tests
	// will wait for an event to come in.
	maximumEventWaitTime = 5 * time.Second
)

// awaitEventBeneath waits for an event at or beneath the specified path,
// failing the test on watch errors or timeout.
func awaitEventBeneath(t *testing.T, watcher Watcher, base string) string {
	t.Helper()
	deadline := time.After(maximumEventWaitTime)
	for {
		select {
		case event := <-watcher.Events():
			if filesystem.ContainsPath(base, event.Path) {
				return event.Path
			}
		case err := <-watcher.Errors():
			t.Fatal("watch error:", err)
		case <-deadline:
			t.Fatal("timed out waiting for event beneath", base)
		}
	}
}

// TestWatchCycle tests watch establishment and event delivery with a simple
// set of filesystem operations. It's not an exhaustive exercise of the
// watching code, more of a litmus test.
func TestWatchCycle(t *testing.T) {
	// Create a temporary directory and defer its removal. Resolve symbolic
	// links in its path (e.g. on systems where the temporary directory lives
	// behind one) so that event paths line up.
	directory, err := os.MkdirTemp("", "pathwatch_watching")
	if err != nil {
		t.Fatal("unable to create temporary directory:", err)
	}
	defer os.RemoveAll(directory)
	if directory, err = filepath.EvalSymlinks(directory); err != nil {
		t.Fatal("unable to resolve temporary directory:", err)
	}

	// Create the watcher and defer its termination.
	watcher, err := NewWatcher(0)
	if err != nil {
		t.Fatal("unable to create watcher:", err)
	}
	defer watcher.Terminate()

	// Establish the watch.
	if err := watcher.Watch(directory, ModeRecursive); err != nil {
		t.Fatal("unable to establish watch:", err)
	}

	// Create a file inside the directory and wait for an event.
	testFilePath := filepath.Join(directory, "test_file")
	if file, err := os.Create(testFilePath); err != nil {
		t.Fatal("unable to create test file:", err)
	} else {
		file.Close()
	}
	awaitEventBeneath(t, watcher, directory)
}

// TestWatchRecursiveExtension tests that directories created beneath a
// recursive watch root receive coverage.
func TestWatchRecursiveExtension(t *testing.T) {
	// Create a temporary directory and defer its removal.
	directory, err := os.MkdirTemp("", "pathwatch_watching")
	if err != nil {
		t.Fatal("unable to create temporary directory:", err)
	}
	defer os.RemoveAll(directory)
	if directory, err = filepath.EvalSymlinks(directory); err != nil {
		t.Fatal("unable to resolve temporary directory:", err)
	}

	// Create the watcher and defer its termination.
	watcher, err := NewWatcher(0)
	if err != nil {
		t.Fatal("unable to create watcher:", err)
	}
	defer watcher.Terminate()

	// Establish the watch.
	if err := watcher.Watch(directory, ModeRecursive); err != nil {
		t.Fatal("unable to establish watch:", err)
	}

	// Create a subdirectory and allow coverage to extend to it.
	subdirectory := filepath.Join(directory, "subdirectory")
	if err := os.Mkdir(subdirectory, 0700); err != nil {
		t.Fatal("unable to create subdirectory:", err)
	}
	awaitEventBeneath(t, watcher, directory)
	time.Sleep(timeBetweenOperations)

	// Create a file inside the subdirectory and wait for an event beneath
	// the subdirectory itself.
	testFilePath := filepath.Join(subdirectory, "test_file")
	if file, err := os.Create(testFilePath); err != nil {
		t.Fatal("unable to create test file:", err)
	} else {
		file.Close()
	}
	awaitEventBeneath(t, watcher, subdirectory)
}

// TestWatchMissingTarget tests that watching a non-existent path fails.
func TestWatchMissingTarget(t *testing.T) {
	// Create the watcher and defer its termination.
	watcher, err := NewWatcher(0)
	if err != nil {
		t.Fatal("unable to create watcher:", err)
	}
	defer watcher.Terminate()

	// Attempt the watch.
	if err := watcher.Watch(filepath.Join(os.TempDir(), "pathwatch_nonexistent_target"), ModeRecursive); err == nil {
		t.Error("watch of missing target succeeded")
	}
}

// TestUnwatchUnknown tests that unwatching an unknown path is a no-op.
func TestUnwatchUnknown(t *testing.T) {
	// Create the watcher and defer its termination.
	watcher, err := NewWatcher(0)
	if err != nil {
		t.Fatal("unable to create watcher:", err)
	}
	defer watcher.Terminate()

	// Attempt the unwatch.
	if err := watcher.Unwatch(filepath.Join(os.TempDir(), "pathwatch_nonexistent_target")); err != nil {
		t.Error("unwatch of unknown path failed:", err)
	}
}
