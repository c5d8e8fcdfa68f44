package mikatiming

import "strings"

// Header is the header row of an exported listing.
var Header = []string{"ranking", "name", "countryCode", "bibNumber", "category", "club", "runTime", "Sex"}

// Result is a single finisher row of a results listing.
type Result struct {
	Ranking     string
	Name        string
	CountryCode string
	BibNumber   string
	Category    string
	Club        string
	RunTime     string
	Sex         string
}

// Row returns the result in Header order.
func (r Result) Row() []any {
	return []any{r.Ranking, r.Name, r.CountryCode, r.BibNumber, r.Category, r.Club, r.RunTime, r.Sex}
}

// ListOptions selects the listing of one event of one year.
type ListOptions struct {
	Year int
	// Event is the mikatiming event code, "BML" for the marathon runners
	// and "HML" for the half marathon.
	Event string
	// EventMainGroup is optional, the marathon listing needs
	// "BMW BERLIN MARATHON".
	EventMainGroup string
	// NumResults is the page size, it defaults to 100.
	NumResults int
}

// Sexes are the values of the sex filter in the order they are scraped.
var Sexes = []string{"M", "W"}

// reportedSex maps the sex filter value onto the value written in results.
func reportedSex(sex string) string {
	if strings.EqualFold(sex, "W") {
		return "F"
	}
	return sex
}
