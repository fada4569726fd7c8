package app

import (
	"os"
	"path/filepath"
)

// DirName is the per-project state directory.
const DirName = ".hotword"

// Paths holds all resolved filesystem paths for the .hotword/ project directory.
// All fields are pre-computed strings.
type Paths struct {
	Root   string // .hotword/
	Config string // .hotword/config.yaml
	DB     string // .hotword/hotword.db
	Dot    string // .hotword/contexts.dot

	LogDir    string // .hotword/log/
	DaemonLog string // .hotword/log/daemon.log

	RunDir   string // .hotword/run/
	PIDFile  string // .hotword/run/daemon.pid
	PortFile string // .hotword/run/http.port
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, DirName)
	return &Paths{
		Root:   root,
		Config: filepath.Join(root, "config.yaml"),
		DB:     filepath.Join(root, "hotword.db"),
		Dot:    filepath.Join(root, "contexts.dot"),

		LogDir:    filepath.Join(root, "log"),
		DaemonLog: filepath.Join(root, "log", "daemon.log"),

		RunDir:   filepath.Join(root, "run"),
		PIDFile:  filepath.Join(root, "run", "daemon.pid"),
		PortFile: filepath.Join(root, "run", "http.port"),
	}
}

// EnsureDirs creates all subdirectories under .hotword/. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.LogDir, p.RunDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// CleanEphemeral removes ephemeral runtime files.
// Called on clean daemon shutdown.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
	os.Remove(p.PortFile)
}
