package engine

import "math/rand"

// User-Agent strings used across HTTP clients.
const (
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var userAgents = []string{
	UserAgentChrome,
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
}

// RandomUserAgent returns a browser User-Agent picked at random.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))] //nolint:gosec // non-cryptographic use
}

// NormPage clamps a 1-based page number: anything below 1 becomes 1.
func NormPage(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

// Truncate returns the first n bytes of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
