package classify

import (
	"encoding/xml"
	"io"
	"strings"
)

// SOAPKind tags what a SOAP document carried.
type SOAPKind int

const (
	SOAPUnrecognized SOAPKind = iota
	SOAPBody
	SOAPFault
)

func (k SOAPKind) String() string {
	switch k {
	case SOAPBody:
		return "body"
	case SOAPFault:
		return "fault"
	}
	return "unrecognized"
}

// SOAPMessage is the tagged result of ParseSOAP. Body holds the inner XML of
// the envelope's Body element; Fault holds the fault message.
type SOAPMessage struct {
	Kind  SOAPKind
	Body  string
	Fault string
}

// Data returns the extracted structure surfaced in the envelope, or nil.
func (m SOAPMessage) Data() any {
	switch m.Kind {
	case SOAPFault:
		return map[string]any{"soapFault": m.Fault}
	case SOAPBody:
		return map[string]any{"soapBody": m.Body}
	}
	return nil
}

type soapBody struct {
	Inner    string         `xml:",innerxml"`
	Fault    *soapFault     `xml:"Fault"`
	Children []soapChildTag `xml:",any"`
}

// soapFault covers SOAP 1.1 (faultstring) and SOAP 1.2 (Reason/Text).
type soapFault struct {
	FaultString string   `xml:"faultstring"`
	ReasonText  []string `xml:"Reason>Text"`
}

type soapChildTag struct {
	XMLName xml.Name
}

// ParseSOAP locates the first Body element in doc, in any namespace, and
// classifies it. A Fault inside the Body wins over response content. Body
// content is only surfaced when its first element is an operation response
// (local name ending in "Response"). Malformed input yields SOAPUnrecognized.
func ParseSOAP(doc string) SOAPMessage {
	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	// Bodies are decoded to UTF-8 before classification; ignore the declared encoding.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return SOAPMessage{Kind: SOAPUnrecognized}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Body" {
			continue
		}

		var b soapBody
		if err := dec.DecodeElement(&b, &start); err != nil {
			return SOAPMessage{Kind: SOAPUnrecognized}
		}
		return b.message()
	}
}

func (b *soapBody) message() SOAPMessage {
	if b.Fault != nil {
		msg := strings.TrimSpace(b.Fault.FaultString)
		if msg == "" && len(b.Fault.ReasonText) > 0 {
			msg = strings.TrimSpace(b.Fault.ReasonText[0])
		}
		return SOAPMessage{Kind: SOAPFault, Fault: msg}
	}
	if len(b.Children) > 0 && strings.HasSuffix(b.Children[0].XMLName.Local, "Response") {
		return SOAPMessage{Kind: SOAPBody, Body: strings.TrimSpace(b.Inner)}
	}
	return SOAPMessage{Kind: SOAPUnrecognized}
}
