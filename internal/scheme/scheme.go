// Package scheme registers the app as the handler of its custom URL scheme so
// the browser can hand external login results back to it.
package scheme

import (
	"fmt"
	"regexp"
	"strings"
)

// AppName is shown by desktop environments for the handler entry.
const AppName = "SpeakNative"

var validScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*$`)

// Validate checks scheme against the RFC 3986 scheme grammar.
func Validate(scheme string) error {
	if !validScheme.MatchString(scheme) {
		return fmt.Errorf("invalid url scheme %q", scheme)
	}
	switch strings.ToLower(scheme) {
	case "http", "https", "file", "mailto":
		return fmt.Errorf("refusing to take over the %q scheme", scheme)
	}
	return nil
}

// desktopEntry is the XDG entry that maps the scheme to exe.
func desktopEntry(scheme, exe string) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", AppName)
	fmt.Fprintf(&b, "Exec=%s %%u\n", quoteExec(exe))
	b.WriteString("Terminal=false\n")
	b.WriteString("NoDisplay=true\n")
	fmt.Fprintf(&b, "MimeType=x-scheme-handler/%s;\n", scheme)
	return b.String()
}

// quoteExec quotes a path for the Exec key of a desktop entry.
func quoteExec(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(path) + `"`
}

func desktopFileName(scheme string) string {
	return "speaknative-" + strings.ToLower(scheme) + ".desktop"
}

// windowsCommand is the open command registered under HKCU on Windows.
func windowsCommand(exe string) string {
	return `"` + exe + `" "%1"`
}
