package ports

// Watcher monitors the vocabulary and phrase files and triggers a graph
// rebuild when either changes. Only one Watch call should be active at a time.
type Watcher interface {
	// Watch starts monitoring paths. onChange is called with the absolute
	// path of each changed file after debouncing. The callback may be invoked
	// from any goroutine. Returns an error if a file's directory doesn't
	// exist or permissions are insufficient.
	Watch(paths []string, onChange func(filePath string)) error

	// Stop ends monitoring and releases all resources. After Stop returns,
	// no further onChange calls will fire. Safe to call multiple times.
	Stop() error
}
