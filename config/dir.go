package config

import (
	"os"
	"path/filepath"
)

func defaultStoreDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "hrsession")
	}
	return ".hrsession"
}
