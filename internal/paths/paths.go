package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.easychat.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".easychat")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// CredentialsPath returns the stored credentials file path.
func CredentialsPath() string {
	return filepath.Join(BaseDir(), "credentials.json")
}

// ArchiveDBPath returns the local message archive path.
func ArchiveDBPath() string {
	return filepath.Join(BaseDir(), "easychat.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "easychatd.log")
}

// EnsureDirs creates the base directory tree with proper permissions.
func EnsureDirs() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
