package htmlutil

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// Scripts holds the data carrying scripts embedded in a Next.js page.
type Scripts struct {
	// Flight is the concatenation of every `self.__next_f.push` chunk in
	// document order.
	Flight string
	// NextData is the contents of the `__NEXT_DATA__` script.
	NextData string
}

const flightPrefix = "self.__next_f.push("

// ParseScripts collects the flight payload and next data out of an html
// document.
func ParseScripts(doc *goquery.Document) Scripts {
	var flight strings.Builder
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(GetText(sel.Get(0)))
		for len(text) > 0 {
			start := strings.Index(text, flightPrefix)
			if start < 0 {
				return
			}
			text = text[start+len(flightPrefix):]
			end := strings.Index(text, ")")
			for end >= 0 {
				chunk, ok := flightChunk(text[:end])
				if ok {
					flight.WriteString(chunk)
					break
				}
				next := strings.Index(text[end+1:], ")")
				if next < 0 {
					end = -1
					break
				}
				end += next + 1
			}
			if end < 0 {
				return
			}
			text = text[end+1:]
		}
	})

	return Scripts{
		Flight:   flight.String(),
		NextData: strings.TrimSpace(doc.Find("script#__NEXT_DATA__").Text()),
	}
}

// flightChunk decodes the argument of a push call, ex. `[1,"..."]`, into the
// string payload it carries.
func flightChunk(arg string) (string, bool) {
	var items []json.RawMessage
	err := json.Unmarshal([]byte(arg), &items)
	if err != nil {
		return "", false
	}
	var out strings.Builder
	for _, item := range items {
		var text string
		if json.Unmarshal(item, &text) == nil {
			out.WriteString(text)
		}
	}
	return out.String(), true
}
