package codec

import (
	"elmah/models"
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{"Application", "Host", "Time", "Unix Time", "Type", "Source", "User", "Status Code", "Message", "URL", "XMLREF", "JSONREF"}

// CSVWriter writes entries as comma-separated rows with a header line.
type CSVWriter struct {
	w           *csv.Writer
	baseURL     string
	wroteHeader bool
}

// NewCSVWriter returns a writer producing rows on w. baseURL, when set, is
// used to build per-entry links to the XML and JSON views.
func NewCSVWriter(w io.Writer, baseURL string) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), baseURL: baseURL}
}

// Write appends entries, emitting the header before the first row.
func (c *CSVWriter) Write(entries []*models.ErrorLogEntry) error {
	if !c.wroteHeader {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
		c.wroteHeader = true
	}

	for _, entry := range entries {
		e := entry.Error()
		t := e.Time().UTC()

		var xmlRef, jsonRef string
		if c.baseURL != "" {
			jsonRef = c.baseURL + "/api/errors/" + entry.ID()
			xmlRef = jsonRef + "/xml"
		}

		row := []string{
			e.ApplicationName(),
			e.HostName(),
			t.Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 4, 64),
			e.Type(),
			e.Source(),
			e.User(),
			strconv.Itoa(e.StatusCode()),
			e.Message(),
			e.ServerVariables().Get("URL"),
			xmlRef,
			jsonRef,
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
