package codec

import (
	"fmt"
	"net/url"
	"strings"
)

var (
	valueEscaper = strings.NewReplacer("%", "%25", " ", "%20", "\r", "%0D", "\n", "%0A")
	keyEscaper   = strings.NewReplacer("%", "%25", " ", "%20", "\r", "%0D", "\n", "%0A", ":", "%3A")
)

func unescape(s string) (string, error) {
	res, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptFormat, err)
	}

	return res, nil
}
