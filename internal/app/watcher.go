package app

// watchSources starts the file watcher on the vocabulary and phrase files.
// A nil watcher (watch: false) is a no-op.
func (a *App) watchSources() error {
	if a.Watcher == nil {
		return nil
	}
	var paths []string
	for _, p := range []string{a.Config.Vocab, a.Config.Phrases} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return a.Watcher.Watch(paths, a.onSourceChanged)
}

// onSourceChanged rebuilds after an edit to a source file. A failed rebuild
// leaves the previous graph serving; the next edit retries.
func (a *App) onSourceChanged(absPath string) {
	a.logger.Info("source changed", "path", absPath)
	if _, err := a.Reload(); err != nil {
		a.logger.Error("rebuild failed; keeping previous graph",
			"path", absPath,
			"generation", a.Generation(),
			"err", err,
		)
	}
}
