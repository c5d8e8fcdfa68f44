package mikatiming

import (
	"raceresults/pkg/htmlutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	bibLabels      = []string{"Startnr.", "Number"}
	categoryLabels = []string{"AK", "AC"}
	clubLabels     = []string{"Verein", "Club"}
	finishLabels   = []string{"Finish", "Netto"}
)

var countryRegex = regexp.MustCompile(`\((.*)\)`)

// labeledField returns the own text of the first field (matched by fieldSelector)
// that has a child div whose text is one of labels.
func labeledField(row *goquery.Selection, fieldSelector string, labels []string) string {
	var value string
	row.Find(fieldSelector).EachWithBreak(func(_ int, field *goquery.Selection) bool {
		matched := false
		field.ChildrenFiltered("div").EachWithBreak(func(_ int, label *goquery.Selection) bool {
			text := htmlutil.Clean(label.Text())
			for _, l := range labels {
				if text == l {
					matched = true
					return false
				}
			}
			return true
		})
		if matched {
			value = htmlutil.OwnText(field)
			return false
		}
		return true
	})
	return value
}

// splitCountry removes the "(XXX)" country suffix from a listed name.
func splitCountry(listed string) (name, country string) {
	groups := countryRegex.FindStringSubmatch(listed)
	if len(groups) < 2 {
		return htmlutil.Clean(listed), ""
	}
	name = countryRegex.ReplaceAllString(listed, "")
	return htmlutil.Clean(name), strings.TrimSpace(groups[1])
}

// ParseListing reads the results of a listing page, rows without a name
// (header rows, empty placeholders) are skipped.
func ParseListing(doc *goquery.Document, sex string) []Result {
	var results []Result
	doc.Find("li.list-group-item.row").Each(func(_ int, li *goquery.Selection) {
		listed := htmlutil.OwnText(li.Find("h4.type-fullname a").First())
		if listed == "" {
			return
		}
		name, country := splitCountry(listed)

		results = append(results, Result{
			Ranking:     htmlutil.OwnText(li.Find("div.type-place.place-primary").First()),
			Name:        name,
			CountryCode: country,
			BibNumber:   labeledField(li, "div.type-field", bibLabels),
			Category:    labeledField(li, "div.type-field", categoryLabels),
			Club:        labeledField(li, "div.type-field, div.type-club", clubLabels),
			RunTime:     labeledField(li, "div.type-time", finishLabels),
			Sex:         reportedSex(sex),
		})
	})
	return results
}
