package match

import (
	"strings"
	"unicode/utf8"
)

const (
	containedSimilarity = 1.0
	categorySimilarity  = 0.8
)

// category maps a word found in a bill's company name to the abbreviations and
// brands that show up on bank statements for it.
type category struct {
	company     string
	descriptors []string
}

// categories is checked in order; the first row that matches wins.
var categories = []category{
	{company: "electricity", descriptors: []string{"agl", "origin", "energy", "ausgrid"}},
	{company: "internet", descriptors: []string{"telstra", "optus", "tpg", "aussie broadband", "iinet"}},
	{company: "phone", descriptors: []string{"telstra", "optus", "vodafone", "mobile"}},
	{company: "insurance", descriptors: []string{"insurance", "nrma", "aami", "allianz", "budget direct"}},
	{company: "netflix", descriptors: []string{"netflix"}},
	{company: "spotify", descriptors: []string{"spotify"}},
	{company: "amazon", descriptors: []string{"amazon", "amzn"}},
}

// nameSimilarity compares a transaction description against a bill's company
// name and returns a similarity in [0, 1].
func nameSimilarity(description, company string) float64 {
	desc := strings.ToLower(description)
	comp := strings.ToLower(strings.TrimSpace(company))
	if comp == "" {
		return 0
	}
	if strings.Contains(desc, comp) {
		return containedSimilarity
	}
	for _, c := range categories {
		if !strings.Contains(comp, c.company) {
			continue
		}
		for _, d := range c.descriptors {
			if strings.Contains(desc, d) {
				return categorySimilarity
			}
		}
	}
	return wordOverlap(desc, comp)
}

// wordOverlap is the share of the company's words longer than two characters
// that appear somewhere in the description.
func wordOverlap(desc, comp string) float64 {
	var total, hits int
	for _, w := range strings.Fields(comp) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		total++
		if strings.Contains(desc, w) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
