package httpx

import (
	"crypto/rand"
	"math/big"
)

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edg/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// RandomBrowserUserAgent picks a desktop browser user agent. Scraping
// providers rotate it per fetch so repeated runs do not share a fingerprint.
func RandomBrowserUserAgent() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(browserUserAgents))))
	if err != nil {
		return browserUserAgents[0]
	}
	return browserUserAgents[int(n.Int64())]
}
