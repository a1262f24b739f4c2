package lifecycle

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumericRegex = regexp.MustCompile(`[^A-Za-z0-9]+`)

// nameSlug turns an applicant name into an object-name component:
// "José  Pérez" becomes "Jose-Perez".
func nameSlug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}
	slug := strings.Trim(nonAlphanumericRegex.ReplaceAllString(plain, "-"), "-")

	const maxLength = 60
	if len(slug) > maxLength {
		slug = strings.Trim(slug[:maxLength], "-")
	}
	if slug == "" {
		return "documento"
	}
	return slug
}

// SignedKey is where the signed contract of id is stored.
func SignedKey(name, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "signed/contrato-firmado-" + nameSlug(name) + "-" + short + ".pdf"
}

// SignedFileName is the file name shown to the applicant.
func SignedFileName(key string) string {
	return key[strings.LastIndex(key, "/")+1:]
}
