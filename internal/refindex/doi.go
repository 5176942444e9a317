// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refindex

import (
	"regexp"
	"strings"
)

// doiPattern matches the registrant/suffix form of a DOI: "10.NNNN/...".
var doiPattern = regexp.MustCompile(`10\.\d{4,}/[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// NormalizeDOI reduces a DOI string to its canonical lowercase
// "10.NNNN/suffix" form. Common prefixes ("doi:", resolver URLs) are
// stripped before matching. Returns the empty string when no DOI can be
// found in the input.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return ""
	}

	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		lower = strings.TrimPrefix(lower, prefix)
	}
	lower = strings.TrimSpace(lower)

	return doiPattern.FindString(lower)
}
