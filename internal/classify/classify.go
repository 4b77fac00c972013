// Package classify sniffs the representation of an upstream response body and
// extracts the parts worth surfacing to API clients.
package classify

import (
	"encoding/json"
	"strings"
)

// ResponseType is the inferred representation of an upstream body.
type ResponseType string

const (
	TypeJSON    ResponseType = "json"
	TypeXML     ResponseType = "xml/soap"
	TypeHTML    ResponseType = "html"
	TypeText    ResponseType = "text"
	TypeUnknown ResponseType = "unknown"
)

// xmlMarkers identify XML documents and SOAP envelopes anywhere in the body.
var xmlMarkers = []string{"<?xml", "<soap:", "<s:"}

// Classification is the result of sniffing one body. Data is nil when nothing
// could be extracted.
type Classification struct {
	Type ResponseType
	Data any
}

// Classify assigns exactly one ResponseType to body. Checks run in priority
// order and the first match wins:
//
//  1. XML declaration or SOAP envelope markers: xml/soap, with the SOAP fault
//     or response body extracted when present.
//  2. Leading '{' or '[': json when the whole body parses strictly, text otherwise.
//  3. An <html tag: html, with the document title extracted when present.
//  4. Anything else, including an empty body: text.
func Classify(body string) Classification {
	if body == "" {
		return Classification{Type: TypeText}
	}

	if containsAny(body, xmlMarkers) {
		return Classification{Type: TypeXML, Data: ParseSOAP(body).Data()}
	}

	if body[0] == '{' || body[0] == '[' {
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return Classification{Type: TypeText}
		}
		return Classification{Type: TypeJSON, Data: v}
	}

	if strings.Contains(body, "<html") {
		c := Classification{Type: TypeHTML}
		if title, ok := HTMLTitle(body); ok {
			c.Data = map[string]any{"htmlTitle": title}
		}
		return c
	}

	return Classification{Type: TypeText}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
