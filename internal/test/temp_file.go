// Package test contains test utilities.
package test

import (
	"os"
)

// CreateTempFile writes content into a new .mp4 file of dir and returns its path.
func CreateTempFile(dir string, byts []byte) (string, error) {
	f, err := os.CreateTemp(dir, "remuxer-*.mp4")
	if err != nil {
		return "", err
	}

	_, err = f.Write(byts)
	if err != nil {
		f.Close()
		return "", err
	}

	return f.Name(), f.Close()
}
