package sqlstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// predicates accumulates a conjunction of conditions with numbered placeholders.
type predicates struct {
	conds []string
	args  []any
}

func (p *predicates) bind(v any) string {
	p.args = append(p.args, v)
	return "$" + strconv.Itoa(len(p.args))
}

func (p *predicates) bindAll(vs []any) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = p.bind(v)
	}
	return strings.Join(ph, ",")
}

func (p *predicates) and(cond string) { p.conds = append(p.conds, cond) }

func (p *predicates) eq(col string, v *int64) {
	if v != nil {
		p.and(col + " = " + p.bind(*v))
	}
}

// between adds inclusive bounds; either side may be absent.
func (p *predicates) between(col string, from, to *time.Time) {
	if from != nil {
		p.and(col + " >= " + p.bind(unix(*from)))
	}
	if to != nil {
		p.and(col + " <= " + p.bind(unix(*to)))
	}
}

// contains adds a case-insensitive substring match. col must hold fold()ed text:
// SQL LOWER only folds ASCII on SQLite and under the C collation on Postgres.
func (p *predicates) contains(col, needle string) {
	if needle == "" {
		return
	}
	p.and(col + " LIKE " + p.bind("%"+escapeLike(fold(needle))+"%") + ` ESCAPE '\'`)
}

// fold is the case folding written to the *_fold search columns.
func fold(s string) string { return strings.ToLower(s) }

func (p *predicates) bounds(countExpr, rateExpr string, b survey.AggregateBounds) {
	if b.ResponseCountMin != nil {
		p.and(countExpr + " >= " + p.bind(*b.ResponseCountMin))
	}
	if b.ResponseCountMax != nil {
		p.and(countExpr + " <= " + p.bind(*b.ResponseCountMax))
	}
	if b.CompletionRateMin != nil {
		p.and(rateExpr + " >= " + p.bind(*b.CompletionRateMin))
	}
	if b.CompletionRateMax != nil {
		p.and(rateExpr + " <= " + p.bind(*b.CompletionRateMax))
	}
}

func (p *predicates) where() string {
	if len(p.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.conds, " AND ")
}

// page appends ORDER BY/LIMIT/OFFSET. The id tie-breaker keeps pages stable.
func (p *predicates) page(orderExpr, idCol string, pg survey.Page) string {
	dir := "DESC"
	if pg.SortOrder == survey.SortAsc {
		dir = "ASC"
	}
	return " ORDER BY " + orderExpr + " " + dir + ", " + idCol + " " + dir +
		" LIMIT " + p.bind(pg.Limit()) + " OFFSET " + p.bind(pg.Offset())
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// rate expression over aggregate columns; zero when there are no responses.
func rateExpr(countCol, completedCol string) string {
	return "CAST(CASE WHEN COALESCE(" + countCol + ", 0) = 0 THEN 0 ELSE 100.0 * " + completedCol + " / " + countCol + " END AS DOUBLE PRECISION)"
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, v := range ids {
		out[i] = v
	}
	return out
}
