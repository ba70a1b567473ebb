package aparto

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"student-rooms/internal/models"
)

const unknownRoomType = "Room (type TBC)"

// roomPrice is one room type advertised on a property page.
type roomPrice struct {
	RoomType string
	Label    string
	Weekly   decimal.NullDecimal
}

var (
	tierProximityRe = regexp.MustCompile(`(?is)(Bronze|Silver|Gold|Platinum|Studio|Deluxe)[\s\-]*(Ensuite|En-suite|Studio|Room|Suite|Apartment)?.{0,200}?[€£]\s*(\d+(?:[.,]\d+)?)\s*(?:p/?w|/week|per week|pw)`)
	tierRe          = regexp.MustCompile(`(?i)\b(Bronze|Silver|Gold|Platinum|Studio|Deluxe)\b[\s\-]*(Ensuite|En-suite|Room|Suite|Apartment)?`)
	weeklyPriceRe   = regexp.MustCompile(`(?i)[€£]\s*(\d+(?:[.,]\d+)?)\s*(?:p/?w|/week|per week|pw)`)
	monthlyPriceRe  = regexp.MustCompile(`(?i)[€£]\s*(\d+(?:[.,]\d+)?)\s*(?:per month|/month|p/?m|pcm)`)

	tierOrder        = map[string]int{"Bronze": 0, "Silver": 1, "Gold": 2, "Platinum": 3}
	roomKeywords     = []string{"bronze", "silver", "gold", "platinum", "ensuite", "studio", "room"}
	nextDataMaxDepth = 10
)

// unknownRoom is used when a property page yields nothing usable.
func unknownRoom() roomPrice {
	return roomPrice{RoomType: unknownRoomType, Label: "price TBC"}
}

// extractRooms reads the room types of a property page: embedded Next.js
// data first, then price text near tier names, then monthly prices, then
// separate tier and price lists.
func extractRooms(page string) []roomPrice {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return []roomPrice{unknownRoom()}
	}
	if raw := doc.Find("script#__NEXT_DATA__").First().Text(); strings.TrimSpace(raw) != "" {
		var data any
		if json.Unmarshal([]byte(raw), &data) == nil {
			if rooms := roomsFromNextData(data); len(rooms) > 0 {
				return rooms
			}
		}
	}
	return roomsFromText(visibleText(doc))
}

func roomsFromNextData(data any) []roomPrice {
	var rooms []roomPrice
	seen := map[string]bool{}
	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > nextDataMaxDepth {
			return
		}
		switch node := v.(type) {
		case map[string]any:
			name := firstString(node, "name", "title", "roomType")
			price := firstValue(node, "price", "priceFrom", "weeklyPrice")
			if name != "" && price != "" && containsAny(strings.ToLower(name), roomKeywords) {
				roomType := titleCase(strings.TrimSpace(name))
				if !seen[roomType] {
					seen[roomType] = true
					r := roomPrice{RoomType: roomType, Label: price}
					cleaned := strings.NewReplacer("€", "", "£", "", ",", "").Replace(price)
					if d, err := decimal.NewFromString(strings.TrimSpace(cleaned)); err == nil && d.IsPositive() {
						r.Weekly = decimal.NewNullDecimal(d)
						r.Label = weeklyLabel(d)
					}
					rooms = append(rooms, r)
				}
			}
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(node[k], depth+1)
			}
		case []any:
			for _, item := range node {
				walk(item, depth+1)
			}
		}
	}
	walk(data, 0)
	return rooms
}

func roomsFromText(text string) []roomPrice {
	var rooms []roomPrice
	seen := map[string]bool{}
	for _, m := range tierProximityRe.FindAllStringSubmatch(text, -1) {
		label := tierLabel(m[1], m[2])
		if seen[label] {
			continue
		}
		seen[label] = true
		r := roomPrice{RoomType: label, Label: "price N/A"}
		if d, ok := parsePrice(m[3]); ok {
			r.Weekly = decimal.NewNullDecimal(d)
			r.Label = weeklyLabel(d)
		}
		rooms = append(rooms, r)
	}
	if len(rooms) > 0 {
		sortByTier(rooms)
		return rooms
	}

	if monthly := distinctPrices(monthlyPriceRe, text); len(monthly) > 0 {
		return []roomPrice{{
			RoomType: "Room",
			Label:    "from €" + monthly[0].StringFixed(0) + "/month",
			Weekly:   decimal.NewNullDecimal(models.WeeklyFromMonthly(monthly[0])),
		}}
	}

	var tiers []string
	for _, m := range tierRe.FindAllStringSubmatch(text, -1) {
		label := tierLabel(m[1], m[2])
		if !seen[label] {
			seen[label] = true
			tiers = append(tiers, label)
		}
	}
	prices := distinctPrices(weeklyPriceRe, text)

	if len(tiers) == 0 {
		r := unknownRoom()
		r.Label = "price N/A"
		if len(prices) > 0 {
			r.Weekly = decimal.NewNullDecimal(prices[0])
			r.Label = "from " + weeklyLabel(prices[0])
		}
		return []roomPrice{r}
	}

	sort.SliceStable(tiers, func(i, j int) bool { return tierRank(tiers[i]) < tierRank(tiers[j]) })
	for i, label := range tiers {
		r := roomPrice{RoomType: label, Label: "price N/A"}
		switch {
		case i < len(prices):
			r.Weekly = decimal.NewNullDecimal(prices[i])
		case len(prices) > 0:
			r.Weekly = decimal.NewNullDecimal(prices[0])
		}
		if r.Weekly.Valid {
			r.Label = weeklyLabel(r.Weekly.Decimal)
		}
		rooms = append(rooms, r)
	}
	return rooms
}

func tierLabel(tier, subtype string) string {
	if subtype == "" {
		subtype = "Ensuite"
	}
	return titleCase(strings.TrimSpace(tier)) + " " + titleCase(strings.TrimSpace(subtype))
}

func tierRank(label string) int {
	first, _, _ := strings.Cut(label, " ")
	if r, ok := tierOrder[first]; ok {
		return r
	}
	return 99
}

func sortByTier(rooms []roomPrice) {
	sort.SliceStable(rooms, func(i, j int) bool { return tierRank(rooms[i].RoomType) < tierRank(rooms[j].RoomType) })
}

// parsePrice reads "1,100" as a thousands group and "291,50" as a decimal.
func parsePrice(s string) (decimal.Decimal, bool) {
	if i := strings.LastIndex(s, ","); i >= 0 && len(s)-i-1 == 3 {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// distinctPrices returns the unique prices captured by re, ascending.
func distinctPrices(re *regexp.Regexp, text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		d, ok := parsePrice(m[1])
		if !ok {
			continue
		}
		dup := false
		for _, have := range out {
			if have.Equal(d) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

func weeklyLabel(d decimal.Decimal) string {
	return "€" + d.StringFixed(0) + "/week"
}

// visibleText joins the page's text nodes with spaces, skipping scripts
// and styles.
func visibleText(doc *goquery.Document) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// firstValue returns the first non-zero scalar under keys, as text.
func firstValue(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case float64:
			if v != 0 {
				return decimal.NewFromFloat(v).String()
			}
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
