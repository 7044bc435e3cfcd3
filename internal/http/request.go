package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// parseTime accepts RFC 3339 timestamps. Invalid input yields the zero time so
// the service reports it as a missing field.
func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// queryParser collects the first malformed query parameter.
type queryParser struct {
	values url.Values
	loc    *time.Location
	err    error
}

func newQueryParser(values url.Values, loc *time.Location) *queryParser {
	if loc == nil {
		loc = time.UTC
	}
	return &queryParser{values: values, loc: loc}
}

func (p *queryParser) fail(name string) {
	if p.err == nil {
		p.err = fmt.Errorf("Paramètre %q invalide.", name)
	}
}

func (p *queryParser) has(name string) bool {
	return strings.TrimSpace(p.values.Get(name)) != ""
}

func (p *queryParser) str(name string) string {
	return strings.TrimSpace(p.values.Get(name))
}

func (p *queryParser) timestamp(name string) *time.Time {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		p.fail(name)
		return nil
	}
	return &ts
}

func (p *queryParser) date(name, layout string) *time.Time {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	ts, err := time.ParseInLocation(layout, raw, p.loc)
	if err != nil {
		p.fail(name)
		return nil
	}
	return &ts
}

func (p *queryParser) integer(name string) *int64 {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		p.fail(name)
		return nil
	}
	return &n
}

func (p *queryParser) boolean(name string) *bool {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(name)
		return nil
	}
	return &b
}
