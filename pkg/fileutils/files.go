package fileutils

import (
	"os"
	"path/filepath"
	"strings"
)

// FileExists checks if a file exsists
func FileExists(filename string) bool {
	if _, err := os.Stat(filename); err == nil {
		return true
	} else {
		return false
	}
}

// IsDir checks if a file exsists and is a directory
func IsDir(filename string) bool {
	if f, err := os.Stat(filename); (err == nil) && (f.IsDir()) {
		return true
	} else {
		return false
	}
}

// DirEmpty checks if a directory has no entries. A missing directory
// counts as empty.
func DirEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return true
	}
	return len(entries) == 0
}

// FileNameWithoutExtension returning the filename without the extension
func FileNameWithoutExtension(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
