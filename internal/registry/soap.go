package registry

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

const nsEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"

// Fault is a SOAP 1.1 fault returned by the registry.
type Fault struct {
	Code   string      `xml:"faultcode"`
	String string      `xml:"faultstring"`
	Actor  string      `xml:"faultactor"`
	Detail FaultDetail `xml:"detail"`
}

type FaultDetail struct {
	Inner string `xml:",innerxml"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.String)
}

// UnexpectedResponseError reports a reply that is not a SOAP envelope,
// typically the registry's HTML maintenance page.
type UnexpectedResponseError struct {
	StatusCode int
	Title      string
	Text       string
}

func (e *UnexpectedResponseError) Error() string {
	msg := fmt.Sprintf("unexpected registry response (HTTP %d)", e.StatusCode)
	if e.Title != "" {
		msg += ": " + e.Title
	}
	if e.Text != "" {
		msg += ": " + e.Text
	}
	return msg
}

const maxErrorText = 300

func newUnexpectedResponse(status int, body []byte) *UnexpectedResponseError {
	e := &UnexpectedResponseError{StatusCode: status}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return e
	}
	e.Title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, title").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if utf8.RuneCountInString(text) > maxErrorText {
		text = string([]rune(text)[:maxErrorText]) + "..."
	}
	e.Text = text
	return e
}

func looksLikeXML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "html"):
		return false
	case strings.Contains(ct, "xml"):
		return true
	}
	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return false
	}
	head := strings.ToLower(string(trimmed[:min(len(trimmed), 64)]))
	return !strings.HasPrefix(head, "<!doctype html") && !strings.HasPrefix(head, "<html")
}

// Call posts request as the body of operation and decodes the reply into
// response. request is encoded as the operation element in the port's
// target namespace; response may be nil when the result is not needed.
func (p *Port) Call(ctx context.Context, operation string, request, response any) error {
	action, ok := p.ep.Operations[operation]
	if !ok {
		return fmt.Errorf("unknown operation %q on %s.%s", operation, p.ep.Service, p.ep.Port)
	}
	payload, err := p.envelope(operation, request)
	if err != nil {
		return errors.Wrapf(err, "encode %s", operation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ep.Address, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "build %s request", operation)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+action+`"`)

	resp, err := p.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "call %s", operation)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s response", operation)
	}
	p.log.Debugw("soap call", "operation", operation, "status", resp.StatusCode, "bytes", len(body))

	if !looksLikeXML(resp.Header.Get("Content-Type"), body) {
		return newUnexpectedResponse(resp.StatusCode, body)
	}
	if resp.StatusCode != http.StatusOK {
		if err := decodeEnvelope(body, nil); err != nil {
			var fault *Fault
			if errors.As(err, &fault) {
				return fault
			}
		}
		return newUnexpectedResponse(resp.StatusCode, body)
	}
	if err := decodeEnvelope(body, response); err != nil {
		var fault *Fault
		if errors.As(err, &fault) {
			return fault
		}
		return errors.Wrapf(err, "decode %s response", operation)
	}
	return nil
}

func (p *Port) envelope(operation string, request any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	env := xml.StartElement{Name: xml.Name{Space: nsEnvelope, Local: "Envelope"}}
	body := xml.StartElement{Name: xml.Name{Space: nsEnvelope, Local: "Body"}}
	if err := enc.EncodeToken(env); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(body); err != nil {
		return nil, err
	}
	if request != nil {
		op := xml.StartElement{Name: xml.Name{Space: p.ep.Namespace, Local: operation}}
		if err := enc.EncodeElement(request, op); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(body.End()); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(env.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEnvelope decodes the first Body child into response, or returns
// the Fault it carries.
func decodeEnvelope(body []byte, response any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var seenRoot, inBody bool
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return errors.New("soap envelope has no body")
		}
		if err != nil {
			return errors.Wrap(err, "parse soap envelope")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case !seenRoot:
				if t.Name.Local != "Envelope" {
					return errors.Errorf("root element is %s, want Envelope", t.Name.Local)
				}
				seenRoot = true
			case !inBody && t.Name.Local == "Body":
				inBody = true
			case inBody && t.Name.Local == "Fault":
				var f Fault
				if err := dec.DecodeElement(&f, &t); err != nil {
					return errors.Wrap(err, "decode soap fault")
				}
				return &f
			case inBody:
				if response == nil {
					return dec.Skip()
				}
				return dec.DecodeElement(response, &t)
			default:
				// Header and other envelope children.
				if err := dec.Skip(); err != nil {
					return errors.Wrap(err, "parse soap envelope")
				}
			}
		case xml.EndElement:
			if inBody && t.Name.Local == "Body" {
				return nil
			}
		}
	}
}
