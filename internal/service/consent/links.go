package consent

import (
	"fmt"
	"strings"

	"github.com/hfiles/clinic-api/internal/model"
)

// LinkConfig controls where consent-form links point.
type LinkConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// linkRule routes a form title to a destination page by keyword. Rules
// are ordered; the first match wins.
type linkRule struct {
	keywords []string
	page     string
}

var linkRules = []linkRule{
	{keywords: []string{"dtr"}, page: "/consent/dtr"},
	{keywords: []string{"tmd", "tmj"}, page: "/consent/tmd"},
	{keywords: []string{"photo", "media"}, page: "/consent/media-release"},
}

const defaultConsentPage = "/consent/general"

// routeTitle resolves the destination page for a form title by
// case-insensitive substring match.
func routeTitle(title string) string {
	lower := strings.ToLower(title)
	for _, rule := range linkRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.page
			}
		}
	}
	return defaultConsentPage
}

// encodeTitle escapes only spaces and slashes; downstream form pages
// expect exactly this encoding, not generic percent-encoding.
func encodeTitle(title string) string {
	title = strings.ReplaceAll(title, " ", "%20")
	return strings.ReplaceAll(title, "/", "%2F")
}

// BuildLink produces the parameterized link for one issuance.
func (s *Service) BuildLink(issuance *model.ConsentFormIssuance, hfid string) string {
	return fmt.Sprintf("%s%s?ConsentId=%s&ConsentName=%s&HFID=%s",
		s.links.BaseURL,
		routeTitle(issuance.Title),
		issuance.ID,
		encodeTitle(issuance.Title),
		hfid,
	)
}
