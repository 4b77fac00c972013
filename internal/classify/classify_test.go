package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articoloResponse = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <GetArticoloByIdResponse xmlns="http://tempuri.org/">
      <GetArticoloByIdResult>C13S015336</GetArticoloByIdResult>
    </GetArticoloByIdResponse>
  </s:Body>
</s:Envelope>`

const soap11Fault = `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>Articolo non trovato</faultstring>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`

const soap12Fault = `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
  <s:Body>
    <s:Fault>
      <s:Code><s:Value>s:Receiver</s:Value></s:Code>
      <s:Reason><s:Text xml:lang="en">Internal error</s:Text></s:Reason>
    </s:Fault>
  </s:Body>
</s:Envelope>`

func TestClassify_JSON(t *testing.T) {
	c := Classify(`{"id":"C13S015336","price":12.5}`)

	assert.Equal(t, TypeJSON, c.Type)
	assert.Equal(t, map[string]any{"id": "C13S015336", "price": 12.5}, c.Data)
}

func TestClassify_JSONArray(t *testing.T) {
	c := Classify(`[1,"two",null]`)

	assert.Equal(t, TypeJSON, c.Type)
	assert.Equal(t, []any{float64(1), "two", nil}, c.Data)
}

func TestClassify_InvalidJSONFallsBackToText(t *testing.T) {
	tests := []string{
		`{"id": `,
		`{"id": 1} trailing`,
		`[1, 2,]`,
		`{'single': 'quotes'}`,
	}
	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			c := Classify(body)
			assert.Equal(t, TypeText, c.Type)
			assert.Nil(t, c.Data)
		})
	}
}

func TestClassify_EmbeddedJSONIsNotParsed(t *testing.T) {
	c := Classify(` {"id":1}`)
	assert.Equal(t, TypeText, c.Type)
	assert.Nil(t, c.Data)

	c = Classify(`result: {"id":1}`)
	assert.Equal(t, TypeText, c.Type)
	assert.Nil(t, c.Data)
}

func TestClassify_SOAPBody(t *testing.T) {
	c := Classify(articoloResponse)

	require.Equal(t, TypeXML, c.Type)
	data, ok := c.Data.(map[string]any)
	require.True(t, ok, "data = %#v", c.Data)
	body, _ := data["soapBody"].(string)
	assert.True(t, strings.HasPrefix(body, "<GetArticoloByIdResponse"), "soapBody = %q", body)
	assert.Contains(t, body, "<GetArticoloByIdResult>C13S015336</GetArticoloByIdResult>")
}

func TestClassify_SOAPFault(t *testing.T) {
	c := Classify(soap11Fault)

	assert.Equal(t, TypeXML, c.Type)
	assert.Equal(t, map[string]any{"soapFault": "Articolo non trovato"}, c.Data)
}

func TestClassify_XMLWithoutSOAP(t *testing.T) {
	c := Classify(`<?xml version="1.0"?><articoli><articolo id="1"/></articoli>`)

	assert.Equal(t, TypeXML, c.Type)
	assert.Nil(t, c.Data)
}

func TestClassify_XMLBeatsJSON(t *testing.T) {
	// Starts with '{' but carries a SOAP marker; XML detection has priority.
	c := Classify(`{"wrapped":"<s:Envelope/>"}`)
	assert.Equal(t, TypeXML, c.Type)
}

func TestClassify_HTML(t *testing.T) {
	c := Classify(`<!DOCTYPE html><html><head><TITLE> Service Unavailable </TITLE></head><body>503</body></html>`)

	assert.Equal(t, TypeHTML, c.Type)
	assert.Equal(t, map[string]any{"htmlTitle": "Service Unavailable"}, c.Data)
}

func TestClassify_HTMLWithoutTitle(t *testing.T) {
	c := Classify(`<html><body>nothing here</body></html>`)

	assert.Equal(t, TypeHTML, c.Type)
	assert.Nil(t, c.Data)
}

func TestClassify_Text(t *testing.T) {
	c := Classify("Endpoint not found.")

	assert.Equal(t, TypeText, c.Type)
	assert.Nil(t, c.Data)
}

func TestClassify_Empty(t *testing.T) {
	c := Classify("")

	assert.Equal(t, TypeText, c.Type)
	assert.Nil(t, c.Data)
}

func TestParseSOAP(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		kind  SOAPKind
		fault string
	}{
		{"response body", articoloResponse, SOAPBody, ""},
		{"soap 1.1 fault", soap11Fault, SOAPFault, "Articolo non trovato"},
		{"soap 1.2 fault", soap12Fault, SOAPFault, "Internal error"},
		{
			name: "fault wins over response content",
			doc: `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
				`<GetArticoloByIdResponse/><s:Fault><faultstring>boom</faultstring></s:Fault>` +
				`</s:Body></s:Envelope>`,
			kind:  SOAPFault,
			fault: "boom",
		},
		{
			name: "body without operation response",
			doc:  `<s:Envelope xmlns:s="x"><s:Body><Ping/></s:Body></s:Envelope>`,
			kind: SOAPUnrecognized,
		},
		{
			name: "undeclared prefix tolerated",
			doc:  `<soap:Envelope><soap:Body><GetArticoliResponse>ok</GetArticoliResponse></soap:Body></soap:Envelope>`,
			kind: SOAPBody,
		},
		{
			name: "declared latin1 encoding ignored",
			doc:  `<?xml version="1.0" encoding="ISO-8859-1"?><s:Envelope xmlns:s="x"><s:Body><GetClienteResponse>però</GetClienteResponse></s:Body></s:Envelope>`,
			kind: SOAPBody,
		},
		{"no body", `<?xml version="1.0"?><root/>`, SOAPUnrecognized, ""},
		{"garbage", `<s:Envelope><s:Body`, SOAPUnrecognized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ParseSOAP(tt.doc)
			assert.Equal(t, tt.kind, msg.Kind, "kind = %s", msg.Kind)
			if tt.kind == SOAPFault {
				assert.Equal(t, tt.fault, msg.Fault)
			}
		})
	}
}

func TestParseSOAP_KeepsNonASCII(t *testing.T) {
	msg := ParseSOAP(`<?xml version="1.0" encoding="ISO-8859-1"?><s:Envelope xmlns:s="x"><s:Body><GetClienteResponse>però</GetClienteResponse></s:Body></s:Envelope>`)

	require.Equal(t, SOAPBody, msg.Kind)
	assert.Contains(t, msg.Body, "però")
}

func TestSOAPMessage_Data(t *testing.T) {
	assert.Nil(t, SOAPMessage{Kind: SOAPUnrecognized}.Data())
	assert.Equal(t, map[string]any{"soapBody": "<x/>"}, SOAPMessage{Kind: SOAPBody, Body: "<x/>"}.Data())
	assert.Equal(t, map[string]any{"soapFault": "bad"}, SOAPMessage{Kind: SOAPFault, Fault: "bad"}.Data())
}

func TestHTMLTitle(t *testing.T) {
	title, ok := HTMLTitle(`<html><head><title>IIS 10.0 Detailed Error - 404.0 - Not Found</title></head></html>`)
	assert.True(t, ok)
	assert.Equal(t, "IIS 10.0 Detailed Error - 404.0 - Not Found", title)

	title, ok = HTMLTitle(`<html><head><title></title></head></html>`)
	assert.True(t, ok)
	assert.Empty(t, title)

	_, ok = HTMLTitle(`<html><body>no title</body></html>`)
	assert.False(t, ok)
}
