package models

import "time"

// Fields carries the values an Error is built from.
// Nil collections are replaced with empty ones when the Error is constructed.
type Fields struct {
	HostName           string
	Type               string
	Source             string
	Message            string
	Detail             string
	User               string
	Time               time.Time
	StatusCode         int
	WebHostHTMLMessage string

	ServerVariables *Collection
	QueryString     *Collection
	Form            *Collection
	Cookies         *Collection
}

// TimeResolution is the precision of the wire time format.
// Record times are truncated to it when the record is built.
const TimeResolution = 100 * time.Nanosecond

// Enricher adjusts the fields of a record before it is frozen.
type Enricher func(f *Fields)

// Error is one captured application error. It is immutable once built:
// accessors hand out copies of the diagnostic collections.
type Error struct {
	applicationName    string
	hostName           string
	typeName           string
	source             string
	message            string
	detail             string
	user               string
	time               time.Time
	statusCode         int
	webHostHTMLMessage string

	serverVariables *Collection
	queryString     *Collection
	form            *Collection
	cookies         *Collection
}

// NewError builds a record owned by applicationName. Enrichers run in order.
func NewError(applicationName string, f Fields, enrichers ...Enricher) *Error {
	for _, enrich := range enrichers {
		if enrich != nil {
			enrich(&f)
		}
	}
	return &Error{
		applicationName:    applicationName,
		hostName:           f.HostName,
		typeName:           f.Type,
		source:             f.Source,
		message:            f.Message,
		detail:             f.Detail,
		user:               f.User,
		time:               f.Time.Truncate(TimeResolution),
		statusCode:         f.StatusCode,
		webHostHTMLMessage: f.WebHostHTMLMessage,
		serverVariables:    f.ServerVariables.Clone(),
		queryString:        f.QueryString.Clone(),
		form:               f.Form.Clone(),
		cookies:            f.Cookies.Clone(),
	}
}

func (e *Error) ApplicationName() string    { return e.applicationName }
func (e *Error) HostName() string           { return e.hostName }
func (e *Error) Type() string               { return e.typeName }
func (e *Error) Source() string             { return e.source }
func (e *Error) Message() string            { return e.message }
func (e *Error) Detail() string             { return e.detail }
func (e *Error) User() string               { return e.user }
func (e *Error) Time() time.Time            { return e.time }
func (e *Error) StatusCode() int            { return e.statusCode }
func (e *Error) WebHostHTMLMessage() string { return e.webHostHTMLMessage }

func (e *Error) ServerVariables() *Collection { return e.serverVariables.Clone() }
func (e *Error) QueryString() *Collection     { return e.queryString.Clone() }
func (e *Error) Form() *Collection            { return e.form.Clone() }
func (e *Error) Cookies() *Collection         { return e.cookies.Clone() }

// Fields returns a copy of the record's values, suitable for building a derived record.
func (e *Error) Fields() Fields {
	return Fields{
		HostName:           e.hostName,
		Type:               e.typeName,
		Source:             e.source,
		Message:            e.message,
		Detail:             e.detail,
		User:               e.user,
		Time:               e.time,
		StatusCode:         e.statusCode,
		WebHostHTMLMessage: e.webHostHTMLMessage,
		ServerVariables:    e.serverVariables.Clone(),
		QueryString:        e.queryString.Clone(),
		Form:               e.form.Clone(),
		Cookies:            e.cookies.Clone(),
	}
}

// Clone returns a deep copy.
func (e *Error) Clone() *Error {
	return NewError(e.applicationName, e.Fields())
}

// WithApplicationName returns a copy owned by name. The receiver is left untouched.
func (e *Error) WithApplicationName(name string) *Error {
	return NewError(name, e.Fields())
}

// Equal compares every field and every collection entry. Times compare by instant.
func (e *Error) Equal(other *Error) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.applicationName == other.applicationName &&
		e.hostName == other.hostName &&
		e.typeName == other.typeName &&
		e.source == other.source &&
		e.message == other.message &&
		e.detail == other.detail &&
		e.user == other.user &&
		e.time.Equal(other.time) &&
		e.statusCode == other.statusCode &&
		e.webHostHTMLMessage == other.webHostHTMLMessage &&
		e.serverVariables.Equal(other.serverVariables) &&
		e.queryString.Equal(other.queryString) &&
		e.form.Equal(other.form) &&
		e.cookies.Equal(other.cookies)
}
