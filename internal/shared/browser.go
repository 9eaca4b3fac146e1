package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var browserGOOS = runtime.GOOS

// OpenBrowser launches the default browser at url. Used by the OAuth login
// flow; callers treat failure as non-fatal and print the URL instead.
func OpenBrowser(url string) error {
	name, args := browserCommand(browserGOOS, url)
	if name == "" {
		return fmt.Errorf("unsupported platform: %s", browserGOOS)
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "linux":
		return "xdg-open", []string{url}
	case "windows":
		return "cmd", []string{"/c", "start", url}
	}
	return "", nil
}
