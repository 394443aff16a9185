// Package codec reads and writes the canonical XML form of an error record.
package codec

import (
	"bytes"
	"elmah/models"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wire form of the time attribute: UTC with seven fractional digits.
const TimeLayout = "2006-01-02T15:04:05.0000000Z"

const (
	elemError           = "error"
	elemServerVariables = "serverVariables"
	elemQueryString     = "queryString"
	elemForm            = "form"
	elemCookies         = "cookies"
	elemItem            = "item"
	elemValue           = "value"
)

// FormatError reports malformed canonical XML.
type FormatError struct {
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "codec: " + e.Msg + ": " + e.Err.Error()
	}
	return "codec: " + e.Msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Encode writes e to w as a single <error> element.
func Encode(w io.Writer, e *models.Error) error {
	enc := xml.NewEncoder(w)

	start := xml.StartElement{Name: xml.Name{Local: elemError}}
	addAttr := func(name, value string) {
		if value != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: value})
		}
	}
	addAttr("application", e.ApplicationName())
	addAttr("host", e.HostName())
	addAttr("type", e.Type())
	addAttr("message", e.Message())
	addAttr("source", e.Source())
	addAttr("detail", e.Detail())
	addAttr("user", e.User())
	if t := e.Time(); !t.IsZero() {
		addAttr("time", FormatTime(t))
	}
	if code := e.StatusCode(); code != 0 {
		addAttr("statusCode", strconv.Itoa(code))
	}
	addAttr("webHostHtmlMessage", e.WebHostHTMLMessage())

	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	collections := []struct {
		name string
		c    *models.Collection
	}{
		{elemServerVariables, e.ServerVariables()},
		{elemQueryString, e.QueryString()},
		{elemForm, e.Form()},
		{elemCookies, e.Cookies()},
	}
	for _, col := range collections {
		if err := encodeCollection(enc, col.name, col.c); err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(start.End()); err != nil {
		return err
	}
	return enc.Flush()
}

// EncodeString returns the canonical XML of e.
func EncodeString(e *models.Error) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, e); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeCollection(enc *xml.Encoder, name string, c *models.Collection) error {
	if c.Empty() {
		return nil
	}

	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, key := range c.Keys() {
		item := xml.StartElement{
			Name: xml.Name{Local: elemItem},
			Attr: []xml.Attr{{Name: xml.Name{Local: "name"}, Value: key}},
		}
		if err := enc.EncodeToken(item); err != nil {
			return err
		}
		for _, v := range c.Values(key) {
			value := xml.StartElement{
				Name: xml.Name{Local: elemValue},
				Attr: []xml.Attr{{Name: xml.Name{Local: "string"}, Value: v}},
			}
			if err := enc.EncodeToken(value); err != nil {
				return err
			}
			if err := enc.EncodeToken(value.End()); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(item.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// Decode reads one <error> element from r. The owning application is taken
// from the application attribute.
func Decode(r io.Reader) (*models.Error, error) {
	dec := xml.NewDecoder(r)

	root, err := firstStart(dec)
	if err != nil {
		return nil, err
	}

	var app string
	var f models.Fields
	for _, attr := range root.Attr {
		switch attr.Name.Local {
		case "application":
			app = attr.Value
		case "host":
			f.HostName = attr.Value
		case "type":
			f.Type = attr.Value
		case "message":
			f.Message = attr.Value
		case "source":
			f.Source = attr.Value
		case "detail":
			f.Detail = attr.Value
		case "user":
			f.User = attr.Value
		case "time":
			t, err := ParseTime(attr.Value)
			if err != nil {
				return nil, &FormatError{Msg: fmt.Sprintf("invalid time %q", attr.Value), Err: err}
			}
			f.Time = t
		case "statusCode":
			code, err := strconv.Atoi(strings.TrimSpace(attr.Value))
			if err != nil {
				return nil, &FormatError{Msg: fmt.Sprintf("invalid statusCode %q", attr.Value), Err: err}
			}
			f.StatusCode = code
		case "webHostHtmlMessage":
			f.WebHostHTMLMessage = attr.Value
		}
	}

	f.ServerVariables = models.NewCollection()
	f.QueryString = models.NewCollection()
	f.Form = models.NewCollection()
	f.Cookies = models.NewCollection()

	if err := decodeChildren(dec, &f); err != nil {
		return nil, err
	}

	return models.NewError(app, f), nil
}

// DecodeString parses s as canonical XML.
func DecodeString(s string) (*models.Error, error) {
	return Decode(strings.NewReader(s))
}

// firstStart skips the prolog and returns the root element.
func firstStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, &FormatError{Msg: "no root element"}
			}
			return xml.StartElement{}, &FormatError{Msg: "malformed document", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.ProcInst, xml.Comment, xml.Directive:
			continue
		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			return xml.StartElement{}, &FormatError{Msg: "root is not an element"}
		default:
			return xml.StartElement{}, &FormatError{Msg: "root is not an element"}
		}
	}
}

func decodeChildren(dec *xml.Decoder, f *models.Fields) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return &FormatError{Msg: "malformed document", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var target *models.Collection
			switch t.Name.Local {
			case elemServerVariables:
				target = f.ServerVariables
			case elemQueryString:
				target = f.QueryString
			case elemForm:
				target = f.Form
			case elemCookies:
				target = f.Cookies
			}
			if target == nil {
				if err := dec.Skip(); err != nil {
					return &FormatError{Msg: "malformed document", Err: err}
				}
				continue
			}
			if err := decodeCollection(dec, target); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeCollection(dec *xml.Decoder, c *models.Collection) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return &FormatError{Msg: "malformed collection", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != elemItem {
				if err := dec.Skip(); err != nil {
					return &FormatError{Msg: "malformed collection", Err: err}
				}
				continue
			}
			if err := decodeItem(dec, t, c); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeItem(dec *xml.Decoder, item xml.StartElement, c *models.Collection) error {
	name := attrValue(item, "name")
	c.AddKey(name)
	for {
		tok, err := dec.Token()
		if err != nil {
			return &FormatError{Msg: "malformed item", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == elemValue {
				c.Add(name, attrValue(t, "string"))
			}
			if err := dec.Skip(); err != nil {
				return &FormatError{Msg: "malformed item", Err: err}
			}
		case xml.EndElement:
			return nil
		}
	}
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// FormatTime renders t in the wire layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts the wire layout and any RFC 3339 time, returning local time.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.Local(), nil
}
