package compose

import (
	"fmt"
	"strings"

	"github.com/imkonsowa/restaurants-assistant/llm"
	"github.com/imkonsowa/restaurants-assistant/maps"
	"github.com/imkonsowa/restaurants-assistant/recommend"
)

func plainPage(slice []recommend.Candidate) string {
	var b strings.Builder
	for i, c := range slice {
		fmt.Fprintf(&b, "## %d. %s\n", i+1, c.Name)
		if c.Reviews.Available {
			fmt.Fprintf(&b, "Reviews: rated %.1f from %d ratings.\n", c.Reviews.Rating, c.Reviews.RatingCount)
		}
		fmt.Fprintf(&b, "- Distance: %s\n", c.Route.DistanceText)
		fmt.Fprintf(&b, "- Travel time: %s\n", c.Route.DurationText)
		if c.Route.FareText != nil {
			fmt.Fprintf(&b, "- Fare: %s\n", *c.Route.FareText)
		}
		fmt.Fprintf(&b, "- Address: %s\n", c.Address)
		if c.Instagram != "" {
			fmt.Fprintf(&b, "- Instagram: %s\n", c.Instagram)
		}
		b.WriteString(llm.IgPlaceholder + "\n")
	}
	b.WriteString("Would you like other options, to change your preferences, or details about one of these restaurants? Type its number.")

	return b.String()
}

func plainDetail(d Detail) string {
	name := d.Place.Name
	if name == "" || name == maps.Unavailable {
		name = d.Candidate.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", name)
	fmt.Fprintf(&b, "Address: %s\n", d.Place.Address)
	fmt.Fprintf(&b, "Phone: %s\n", d.Place.Phone)
	fmt.Fprintf(&b, "Price level: %s\n", d.Place.PriceLevel)
	fmt.Fprintf(&b, "Reservable: %s\n", d.Place.Reservable)
	fmt.Fprintf(&b, "Open now: %s\n", d.Place.OpenNow)
	fmt.Fprintf(&b, "Opening hours: %s\n", d.Place.OpeningHours)
	fmt.Fprintf(&b, "Website: %s\n", d.Place.WebsiteURI)
	fmt.Fprintf(&b, "Google Maps: %s\n", d.Place.MapsURI)
	if d.Station != nil {
		fmt.Fprintf(&b, "Nearest station: %s, %s on foot (%s)\n", d.Station.Name, d.Station.Walk.DurationText, d.Station.Walk.DistanceText)
	} else {
		b.WriteString("Nearest station: none within 1 km\n")
	}
	b.WriteString("You can pick another number, see more options or set new preferences.")

	return b.String()
}
