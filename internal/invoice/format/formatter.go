package format

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	hashLenRe = regexp.MustCompile(`\{HASH(\d+)\}`)
)

const (
	DefaultInvoiceNumberTemplate = "{PREFIX}-{YYYY}{MM}-{HASH10}"
	DefaultInvoicePrefix         = "INV"
)

var hashEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// FormatInvoiceNumber renders an invoice number from a template, the
// settlement time and the payment natural key. The same inputs always
// produce the same number, so a replayed issuance lands on the same row.
func FormatInvoiceNumber(
	template string,
	prefix string,
	settledAt time.Time,
	naturalKey string,
) (string, error) {

	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}

	naturalKey = strings.TrimSpace(naturalKey)
	if naturalKey == "" {
		return "", fmt.Errorf("invoice natural key is empty")
	}
	if !hashLenRe.MatchString(template) && !strings.Contains(template, "{HASH}") {
		return "", fmt.Errorf("invoice number template must contain a hash token")
	}

	settledAt = settledAt.UTC()
	digest := KeyDigest(naturalKey)

	out := template
	out = strings.ReplaceAll(out, "{PREFIX}", strings.ToUpper(strings.TrimSpace(prefix)))

	// Date tokens
	out = strings.ReplaceAll(out, "{YYYY}", settledAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", settledAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", settledAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", settledAt.Format("02"))

	out = strings.ReplaceAll(out, "{HASH}", digest[:10])

	out = hashLenRe.ReplaceAllStringFunc(out, func(m string) string {
		match := hashLenRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}

		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 || width > len(digest) {
			return m
		}

		return digest[:width]
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}

	return out, nil
}

// KeyDigest is the unpadded base32 SHA-256 of a natural key.
func KeyDigest(naturalKey string) string {
	sum := sha256.Sum256([]byte(naturalKey))
	return hashEncoding.EncodeToString(sum[:])
}
