package report

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

func displayAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	default:
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
}

// openFile hands path to the platform image viewer.
func openFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("chart not found: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path).Start()
	default:
		return exec.Command("xdg-open", path).Start()
	}
}
