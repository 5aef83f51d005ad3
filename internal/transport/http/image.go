package http

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	thumbResolution = 200
	fullResolution  = 1280
)

var imageFilePattern = regexp.MustCompile(`(?i)[^/]+\.(jpe?g|png)`)

// ResizeImage rewrites a Wikimedia Commons upload URL into its thumbnail
// form at the given pixel width. URLs that do not look like Commons
// uploads pass through untouched.
func ResizeImage(url string, width int) string {
	if !strings.Contains(url, "/commons/") || strings.Contains(url, "/thumb/") {
		return url
	}
	file := imageFilePattern.FindString(url)
	if file == "" {
		return url
	}
	resized := strings.Replace(url, "/commons/", "/commons/thumb/", 1)
	return fmt.Sprintf("%s/%dpx-%s", resized, width, file)
}
