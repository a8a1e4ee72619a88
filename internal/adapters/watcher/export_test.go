package watcher

// Changed exposes the content-change check for testing.
func Changed(w *Watcher, path string) bool {
	return w.changed(path)
}
