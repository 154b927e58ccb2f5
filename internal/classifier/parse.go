package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danielolaszy/prwatch/pkg/models"
)

var (
	impactLine        = regexp.MustCompile(`(?im)^[\s*_#>-]*impact[\s*_]*:`)
	impactInline      = regexp.MustCompile(`(?i)\bimpact[\s*_]*:`)
	descriptionLine   = regexp.MustCompile(`(?im)^[\s*_#>-]*description[\s*_]*:`)
	descriptionInline = regexp.MustCompile(`(?i)\bdescription[\s*_]*:`)

	leadingImpact      = regexp.MustCompile(`(?i)^(\s*[*_]*\s*impact[\s*_]*:)+`)
	leadingDescription = regexp.MustCompile(`(?i)^(\s*[*_]*\s*description[\s*_]*:)+`)
	word               = regexp.MustCompile(`[A-Za-z]+`)
)

// tierDecoration is what may precede the tier on an Impact line.
const tierDecoration = " \t*_`'\"[("

// MalformedResponseError is returned when model output has no usable impact tier.
type MalformedResponseError struct {
	Raw    string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed classifier response: " + e.Reason
}

// ParseResponse extracts a Classification from text shaped like
// "Description: ...\nImpact: Major". It tolerates markdown emphasis,
// brackets, case differences, trailing prose and repeated labels. The
// last Impact label wins; the description runs from the first Description
// label before it up to that label.
func ParseResponse(text string) (models.Classification, error) {
	impactAt := lastMatch(text, impactLine, impactInline)
	if impactAt == nil {
		return models.Classification{}, &MalformedResponseError{Raw: text, Reason: "missing Impact label"}
	}

	value := text[impactAt[1]:]
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		value = value[:i]
	}
	value = leadingImpact.ReplaceAllString(value, "")

	impact, ok := tierIn(value)
	if !ok {
		return models.Classification{}, &MalformedResponseError{
			Raw:    text,
			Reason: fmt.Sprintf("unknown impact %q", strings.TrimSpace(value)),
		}
	}

	var description string
	head := text[:impactAt[0]]
	if loc := firstMatch(head, descriptionLine, descriptionInline); loc != nil {
		description = cleanDescription(head[loc[1]:])
	}

	return models.Classification{Description: description, Impact: impact}, nil
}

// tierIn accepts s only when its first token, after emphasis and brackets,
// names a tier and no other tier is named later on the line. Hedged or
// templated answers such as "Major/Minor/Tiny" or "Not Major" are rejected.
func tierIn(s string) (models.Impact, bool) {
	s = strings.TrimLeft(s, tierDecoration)
	words := word.FindAllStringIndex(s, -1)
	if len(words) == 0 || words[0][0] != 0 {
		return "", false
	}

	impact, ok := models.ParseImpact(s[:words[0][1]])
	if !ok {
		return "", false
	}
	for _, w := range words[1:] {
		if other, ok := models.ParseImpact(s[w[0]:w[1]]); ok && other != impact {
			return "", false
		}
	}
	return impact, true
}

func cleanDescription(s string) string {
	s = leadingDescription.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, "*_ ")
}

func lastMatch(text string, anchored, inline *regexp.Regexp) []int {
	if all := anchored.FindAllStringIndex(text, -1); len(all) > 0 {
		return all[len(all)-1]
	}
	if all := inline.FindAllStringIndex(text, -1); len(all) > 0 {
		return all[len(all)-1]
	}
	return nil
}

func firstMatch(text string, anchored, inline *regexp.Regexp) []int {
	if loc := anchored.FindStringIndex(text); loc != nil {
		return loc
	}
	return inline.FindStringIndex(text)
}
