//go:build !windows

package process

// DefaultCandidates lists launcher locations in preference order.
func DefaultCandidates() []string {
	return []string{
		"/opt/mudfish/bin/mudrun",
		"/opt/mudfish/mudrun",
		"/usr/local/bin/mudrun",
		"/usr/bin/mudrun",
		"/Applications/Mudfish.app/Contents/MacOS/mudrun",
	}
}
