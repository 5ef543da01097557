package content

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// JSONLD is the structured data found in a page.
type JSONLD struct {
	// Types maps each @type to the raw object of that type. When a type
	// appears more than once the last object wins.
	Types map[string]json.RawMessage

	// Scripts holds the raw text of every JSON-LD block, parseable or not.
	Scripts []string

	// Skipped counts blocks that were not valid JSON.
	Skipped int
}

// ExtractJSONLD collects every JSON-LD block of doc. Objects under an @graph
// array are keyed by their @type; a top-level object without @graph is keyed
// by its own @type. Malformed blocks are counted and skipped.
func ExtractJSONLD(doc *goquery.Document) JSONLD {
	out := JSONLD{Types: make(map[string]json.RawMessage)}

	doc.Find(jsonLDSelector).Each(func(_ int, sel *goquery.Selection) {
		raw := sel.Text()
		out.Scripts = append(out.Scripts, raw)

		nodes, ok := decodeNodes(raw)
		if !ok {
			out.Skipped++
			return
		}
		for _, node := range nodes {
			collectTypes(node, out.Types)
		}
	})

	return out
}

func decodeNodes(raw string) ([]map[string]json.RawMessage, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	var single map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []map[string]json.RawMessage{single}, true
	}

	var list []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, true
	}
	return nil, false
}

func collectTypes(node map[string]json.RawMessage, into map[string]json.RawMessage) {
	graph, ok := node["@graph"]
	if !ok {
		if name := typeName(node["@type"]); name != "" {
			if raw, err := json.Marshal(node); err == nil {
				into[name] = raw
			}
		}
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(graph, &items); err != nil {
		return
	}
	for _, item := range items {
		var head struct {
			Type json.RawMessage `json:"@type"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			continue
		}
		if name := typeName(head.Type); name != "" {
			into[name] = item
		}
	}
}

// typeName reads an @type value, which is either a string or a list of
// strings. Lists are keyed by their first entry.
func typeName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}
