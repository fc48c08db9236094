package useragent

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens a URL through the most generic system-level facility
// available. It is the last-resort mechanism: the returned error is the
// only signal there is.
type Opener interface {
	OpenURL(url string) error
}

// SystemOpener opens URLs in the default system browser
type SystemOpener struct{}

// OpenURL starts the platform browser command for the given URL. It does
// not wait for the command to finish.
func (SystemOpener) OpenURL(url string) error {
	if url == "" {
		return fmt.Errorf("url is empty")
	}
	name, args := openCommand(runtime.GOOS, url)
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

// openCommand returns the platform-specific command used to open a URL
func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(url string) error

// OpenURL implements Opener
func (f OpenerFunc) OpenURL(url string) error {
	return f(url)
}
