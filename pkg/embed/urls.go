package embed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Align positions the embedded pricing grid
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ParseAlign parses an alignment, defaulting to left
func ParseAlign(s string) (Align, error) {
	switch Align(s) {
	case "":
		return AlignLeft, nil
	case AlignLeft, AlignCenter, AlignRight:
		return Align(s), nil
	}
	return "", fmt.Errorf("invalid alignment %q", s)
}

// ClientURL is the iframe source of the embedded pricing client
func ClientURL(baseURL, accessToken string, dark bool, align Align) string {
	q := url.Values{}
	q.Set("dark", strconv.FormatBool(dark))
	q.Set("align", string(align))
	return embedPath(baseURL, "client", accessToken) + "?" + q.Encode()
}

// ManageURL is the iframe source of the embedded subscription management view
func ManageURL(baseURL, accessToken string, dark bool) string {
	q := url.Values{}
	q.Set("dark", strconv.FormatBool(dark))
	return embedPath(baseURL, "manage", accessToken) + "?" + q.Encode()
}

func embedPath(baseURL, kind, accessToken string) string {
	return strings.TrimRight(baseURL, "/") + "/embed/" + kind + "/" + url.PathEscape(accessToken)
}
