package models

import (
	"time"
	"unicode/utf8"
)

// Column sizes of the ELMAH_Error table.
const (
	ApplicationSize = 60
	HostSize        = 50
	TypeSize        = 100
	SourceSize      = 60
	MessageSize     = 500
	UserSize        = 50
	ErrorIDSize     = 36
)

// ErrorRow is the relational form of a logged error. AllXml is authoritative;
// the other columns are derived from the same record for indexing.
type ErrorRow struct {
	Sequence    int64     `gorm:"column:Sequence;primaryKey;autoIncrement"`
	ErrorID     string    `gorm:"column:ErrorId;size:36;uniqueIndex;not null"`
	Application string    `gorm:"column:Application;size:60;not null;index:IX_ELMAH_Error_App_Time,priority:1"`
	Host        string    `gorm:"column:Host;size:50;not null"`
	Type        string    `gorm:"column:Type;size:100;not null"`
	Source      string    `gorm:"column:Source;size:60;not null"`
	Message     string    `gorm:"column:Message;size:500;not null"`
	User        string    `gorm:"column:User;size:50;not null"`
	StatusCode  int       `gorm:"column:StatusCode;not null"`
	TimeUtc     time.Time `gorm:"column:TimeUtc;not null;index:IX_ELMAH_Error_App_Time,priority:2,sort:desc"`
	AllXML      string    `gorm:"column:AllXml;type:text;not null"`
}

// TableName keeps the legacy table name.
func (ErrorRow) TableName() string {
	return "ELMAH_Error"
}

// NewErrorRow fills the indexed columns from e. Strings longer than their column are cut.
func NewErrorRow(id, application string, e *Error, allXML string) *ErrorRow {
	return &ErrorRow{
		ErrorID:     id,
		Application: Truncate(application, ApplicationSize),
		Host:        Truncate(e.HostName(), HostSize),
		Type:        Truncate(e.Type(), TypeSize),
		Source:      Truncate(e.Source(), SourceSize),
		Message:     Truncate(e.Message(), MessageSize),
		User:        Truncate(e.User(), UserSize),
		StatusCode:  e.StatusCode(),
		TimeUtc:     e.Time().UTC(),
		AllXML:      allXML,
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ErrorSummary is the list view of an entry returned by the HTTP API.
type ErrorSummary struct {
	ID          string    `json:"id"`
	Application string    `json:"application"`
	Host        string    `json:"host"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Message     string    `json:"message"`
	User        string    `json:"user"`
	StatusCode  int       `json:"status_code"`
	Time        time.Time `json:"time"`
}

// ErrorDetail adds the full diagnostics to ErrorSummary.
type ErrorDetail struct {
	ErrorSummary
	Detail             string            `json:"detail"`
	WebHostHTMLMessage string            `json:"web_host_html_message,omitempty"`
	ServerVariables    []CollectionItem  `json:"server_variables"`
	QueryString        []CollectionItem  `json:"query_string"`
	Form               []CollectionItem  `json:"form"`
	Cookies            []CollectionItem  `json:"cookies"`
	Store              map[string]string `json:"store"`
}

// CollectionItem is one key of a Collection with its values.
type CollectionItem struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// NewErrorSummary builds the list view of entry.
func NewErrorSummary(entry *ErrorLogEntry) ErrorSummary {
	e := entry.Error()
	return ErrorSummary{
		ID:          entry.ID(),
		Application: e.ApplicationName(),
		Host:        e.HostName(),
		Type:        e.Type(),
		Source:      e.Source(),
		Message:     e.Message(),
		User:        e.User(),
		StatusCode:  e.StatusCode(),
		Time:        e.Time(),
	}
}

// NewErrorDetail builds the detail view of entry.
func NewErrorDetail(entry *ErrorLogEntry) ErrorDetail {
	e := entry.Error()
	d := ErrorDetail{
		ErrorSummary:       NewErrorSummary(entry),
		Detail:             e.Detail(),
		WebHostHTMLMessage: e.WebHostHTMLMessage(),
		ServerVariables:    collectionItems(e.ServerVariables()),
		QueryString:        collectionItems(e.QueryString()),
		Form:               collectionItems(e.Form()),
		Cookies:            collectionItems(e.Cookies()),
	}
	if log := entry.Log(); log != nil {
		d.Store = map[string]string{
			"name":        log.Name(),
			"application": log.ApplicationName(),
		}
	}
	return d
}

func collectionItems(c *Collection) []CollectionItem {
	items := make([]CollectionItem, 0, c.Len())
	for _, k := range c.Keys() {
		items = append(items, CollectionItem{Name: k, Values: c.Values(k)})
	}
	return items
}
