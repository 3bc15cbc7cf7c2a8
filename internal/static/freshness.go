package static

import (
	"log"
	"os"
	"time"
)

// StaleFiles returns the paths that are missing or were last modified more
// than maxAge ago. A non-positive maxAge only reports missing files.
func StaleFiles(maxAge time.Duration, paths ...string) []string {
	var stale []string
	for _, path := range paths {
		if isStaleOrMissing(path, maxAge) {
			stale = append(stale, path)
		}
	}
	return stale
}

// WarnIfStale logs one warning per stale or missing reference file.
// Reference data is never refreshed automatically.
func WarnIfStale(maxAge time.Duration, paths ...string) {
	stale := StaleFiles(maxAge, paths...)
	for _, path := range stale {
		log.Printf("Reference: warning: %s is missing or older than %v", path, maxAge)
	}
	if len(stale) == 0 {
		log.Println("Reference: static data is fresh")
	}
}

func isStaleOrMissing(path string, maxAge time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return true
	}
	if maxAge <= 0 {
		return false
	}
	return time.Since(info.ModTime()) > maxAge
}
