// Package problem writes RFC 9457 Problem Details responses.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc9457
package problem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// ContentType is the media type of a problem document.
const ContentType = "application/problem+json"

// Details is an RFC 9457 problem document.
type Details struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// New returns a problem for status with the default type and title.
func New(status int) *Details {
	title := http.StatusText(status)
	if title == "" {
		title = "HTTP Problem"
	}

	return &Details{
		Type:   "about:blank#" + strconv.Itoa(status),
		Title:  title,
		Status: status,
	}
}

// WithTitle overrides the title.
func (d *Details) WithTitle(title string) *Details {
	d.Title = title
	return d
}

// WithDetail sets the human-readable detail.
func (d *Details) WithDetail(detail string) *Details {
	d.Detail = detail
	return d
}

// WithInstance sets the instance URI reference.
func (d *Details) WithInstance(instance string) *Details {
	d.Instance = instance
	return d
}

func (d *Details) Error() string {
	if d.Detail != "" {
		return fmt.Sprintf("%s (status %d): %s", d.Title, d.Status, d.Detail)
	}

	return fmt.Sprintf("%s (status %d)", d.Title, d.Status)
}

// Write encodes the problem to w with its status code. If encoding fails a
// plain 500 is written instead.
func (d *Details) Write(w http.ResponseWriter) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(d); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(d.Status)
	w.Write(buf.Bytes())
}
