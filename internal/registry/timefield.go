package registry

import (
	"encoding/xml"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TimeResult is a parsed registry timestamp. Clamped is set when the
// source carried a seconds value above 59 that was rewritten to 59.
type TimeResult struct {
	Time    time.Time
	Clamped bool
}

var timePattern = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2}T)?(\d{2}:\d{2}):(\d{2})(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)

// ParseTime parses xsd:time and xsd:dateTime values. The registry emits
// seconds of 60 and above; those are clamped to 59 rather than rejected.
// Values without a zone are read as UTC.
func ParseTime(s string) (TimeResult, error) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return TimeResult{}, errors.Errorf("invalid time %q", s)
	}
	date, hm, sec, frac, zone := m[1], m[2], m[3], m[4], m[5]

	clamped := false
	if sec > "59" {
		sec, frac, clamped = "59", "", true
	}

	layout := "15:04:05"
	if date != "" {
		layout = "2006-01-02T" + layout
	}
	if zone != "" {
		layout += "Z07:00"
	}
	t, err := time.Parse(layout, date+hm+":"+sec+frac+zone)
	if err != nil {
		return TimeResult{}, errors.Wrapf(err, "invalid time %q", s)
	}
	return TimeResult{Time: t, Clamped: clamped}, nil
}

// Time decodes a registry timestamp element. Empty elements decode to the
// zero time.
type Time struct {
	time.Time
	Clamped bool
	// Invalid holds the element text when it could not be parsed.
	Invalid string
}

// UnmarshalXML does not fail on a malformed timestamp: it logs a warning
// and leaves the zero time, so one bad field does not reject the record.
// encoding/xml gives an Unmarshaler no way to receive a logger, so this
// logs through zap's global logger; cmd/mastr installs the process logger
// there with zap.ReplaceGlobals.
func (t *Time) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = Time{}
		return nil
	}
	r, err := ParseTime(s)
	if err != nil {
		zap.S().Warnw("unparsable registry time", "element", start.Name.Local, "value", s, "err", err)
		*t = Time{Invalid: s}
		return nil
	}
	if r.Clamped {
		zap.S().Debugw("clamped out-of-range seconds", "element", start.Name.Local, "value", s)
	}
	*t = Time{Time: r.Time, Clamped: r.Clamped}
	return nil
}
