package config

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path on every write event and invokes onChange with
// the newly loaded Tunables whenever its Fingerprint differs from the
// last one delivered. It runs until ctx is canceled or the watcher
// fails to start. The mpoolctl serve command uses it only to log that
// the file changed; its Module keeps the limits and ladder it was
// started with until the process is restarted.
func Watch(ctx context.Context, path string, onChange func(Tunables)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	last, err := Load(path)
	if err != nil {
		return err
	}
	lastFingerprint := last.Fingerprint()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t, err := Load(path)
			if err != nil {
				log.Printf("config: reload of %s failed: %v", path, err)
				continue
			}
			if fp := t.Fingerprint(); fp != lastFingerprint {
				lastFingerprint = fp
				onChange(t)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}
