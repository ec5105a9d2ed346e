package nfc

import (
	"regexp"
	"strings"
)

const (
	// IdentifierSize is the tag UID length in bytes.
	IdentifierSize = 7
	// BlockSize is the configuration block length in bytes.
	BlockSize = 16
)

// DefaultBlock is written to block 4 when the user sends "0" or nothing.
const DefaultBlock = "00 00 4A 44 00 00 41 30 00 20 11 16 00 48 49 34"

var (
	identifierPattern = regexp.MustCompile(`^[0-9a-fA-F]{14}$`)
	blockBytePattern  = regexp.MustCompile(`^[0-9a-fA-F]{2}$`)

	identifierSeparators = strings.NewReplacer(":", "", " ", "")
)

// NormalizeIdentifier drops the ':' and ' ' separators from a UID.
func NormalizeIdentifier(text string) string {
	return identifierSeparators.Replace(text)
}

// ValidIdentifier reports whether text is 7 bytes of hex once separators are
// removed.
func ValidIdentifier(text string) bool {
	return identifierPattern.MatchString(NormalizeIdentifier(text))
}

// ValidBlock reports whether text holds exactly 16 whitespace separated hex
// bytes.
func ValidBlock(text string) bool {
	tokens := strings.Fields(text)
	if len(tokens) != BlockSize {
		return false
	}
	for _, tok := range tokens {
		if !blockBytePattern.MatchString(tok) {
			return false
		}
	}
	return true
}

// ResolveBlock substitutes DefaultBlock for the "0" and empty sentinels.
func ResolveBlock(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == "0" {
		return DefaultBlock
	}
	return trimmed
}
