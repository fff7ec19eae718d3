package classifier

import (
	"regexp"

	"github.com/turtacn/DexAtlas/pkg/types/trial"
)

// routeCue holds the patterns of one base route.  The structured pattern is
// applied to the mode column, where bare abbreviations such as "IN" and "IM"
// are meaningful; the text pattern is applied to prose, where they are not.
type routeCue struct {
	route      trial.Route
	structured *regexp.Regexp
	text       *regexp.Regexp
}

var routeCues = func() []routeCue {
	iv := regexp.MustCompile(`(?i)\bintravenous(?:ly)?\b|\bi\.v\.|\biv\b`)
	inh := regexp.MustCompile(`(?i)\binhal\w*|\binh\b|\bvolatile\b|\bnebuli[sz]\w*`)
	po := regexp.MustCompile(`(?i)\boral(?:ly)?\b|\bp\.o\.|\bpo\b|\btablets?\b`)
	return []routeCue{
		{trial.RouteIV, iv, iv},
		{
			trial.RouteIN,
			regexp.MustCompile(`(?i:\bintranasal\w*|\bnasal\w*)|\bIN\b`),
			regexp.MustCompile(`(?i)\bintranasal\w*|\bnasal\w*`),
		},
		{trial.RouteINH, inh, inh},
		{trial.RoutePO, po, po},
		{
			trial.RouteIM,
			regexp.MustCompile(`(?i:\bintramuscular\w*)|\bIM\b`),
			regexp.MustCompile(`(?i)\bintramuscular\w*`),
		},
	}
}()

// ClassifyRoute standardizes the administration route from the mode column
// and the dex-arm text together, so a route named in either one counts
// ("intranasal load, IV maintenance" -> "IN+IV").  Bare abbreviations are
// only read from the mode column.  No cue yields Unknown.
func ClassifyRoute(structured, armText string) trial.Route {
	found := routesIn(structured, true)
	found = append(found, routesIn(armText, false)...)
	return trial.CombineRoutes(found)
}

func routesIn(text string, structured bool) []trial.Route {
	if text == "" {
		return nil
	}
	var found []trial.Route
	for _, cue := range routeCues {
		re := cue.text
		if structured {
			re = cue.structured
		}
		if re.MatchString(text) {
			found = append(found, cue.route)
		}
	}
	return found
}

//Personal.AI order the ending
