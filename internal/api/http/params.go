package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// params reads typed query values and keeps the first parse error.
type params struct {
	q   url.Values
	err error
}

func newParams(q url.Values) *params { return &params{q: q} }

func (p *params) fail(key, want string) {
	if p.err == nil {
		p.err = survey.Validationf("query %s must be %s", key, want)
	}
}

func (p *params) str(key string) string { return strings.TrimSpace(p.q.Get(key)) }

// list splits comma separated values and repeated keys.
func (p *params) list(key string) []string {
	var out []string
	for _, v := range p.q[key] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (p *params) int(key string, def int) int {
	v := p.str(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, "an integer")
		return def
	}
	return n
}

func (p *params) int64(key string) *int64 {
	v := p.str(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, "an integer")
		return nil
	}
	return &n
}

func (p *params) int64s(key string) []int64 {
	var out []int64
	for _, v := range p.list(key) {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			p.fail(key, "a list of integers")
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (p *params) float(key string) *float64 {
	v := p.str(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, "a number")
		return nil
	}
	return &f
}

func (p *params) bool(key string) *bool {
	v := p.str(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, "true or false")
		return nil
	}
	return &b
}

// time accepts RFC 3339 or a bare date (midnight UTC).
func (p *params) time(key string) *time.Time {
	v := p.str(key)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.fail(key, "an RFC 3339 timestamp or YYYY-MM-DD date")
	return nil
}

func (p *params) page() survey.Page {
	return survey.Page{
		Page:      p.int("page", 1),
		PerPage:   p.int("per_page", survey.DefaultPerPage),
		SortBy:    p.str("sort_by"),
		SortOrder: survey.SortOrder(strings.ToLower(p.str("sort_order"))),
	}
}

func (p *params) bounds() survey.AggregateBounds {
	return survey.AggregateBounds{
		ResponseCountMin:  p.int64("response_count_min"),
		ResponseCountMax:  p.int64("response_count_max"),
		CompletionRateMin: p.float("completion_rate_min"),
		CompletionRateMax: p.float("completion_rate_max"),
	}
}
