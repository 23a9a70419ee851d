package projects

import (
	"strings"

	"github.com/monitaro/pjmanager/internal/app/forms"
	"github.com/monitaro/pjmanager/internal/app/storage"
)

// Criteria are the list filters keyed by name. Blank entries are ignored;
// the rest form a conjunction.
type Criteria map[string]string

var (
	substringCriteria = []string{"pj_number", "site_name", "dealer_name"}
	exactCriteria     = []string{"contract_status", "sales_person", "transaction_type", "product_category"}
	rangeCriteria     = []string{"project_date", "installation_scheduled_date", "removal_scheduled_date"}
)

// CriteriaKeys lists every accepted criterion.
func CriteriaKeys() []string {
	keys := append([]string{}, substringCriteria...)
	keys = append(keys, exactCriteria...)
	for _, col := range rangeCriteria {
		keys = append(keys, col+"_from", col+"_to")
	}
	return keys
}

// Clean keeps only known, non-blank criteria.
func (c Criteria) Clean() Criteria {
	out := Criteria{}
	for _, k := range CriteriaKeys() {
		if v := strings.TrimSpace(c[k]); v != "" {
			out[k] = v
		}
	}
	return out
}

// Query builds the store query, newest first. Range bounds must be dates.
func (c Criteria) Query() (storage.Query, error) {
	q := storage.Query{}.Order("created_at", true)
	for _, col := range substringCriteria {
		q = q.Where(storage.ILike(col, strings.TrimSpace(c[col])))
	}
	for _, col := range exactCriteria {
		q = q.Where(storage.Eq(col, strings.TrimSpace(c[col])))
	}
	errs := forms.Errors{}
	for _, col := range rangeCriteria {
		for _, bound := range []string{"_from", "_to"} {
			raw := strings.TrimSpace(c[col+bound])
			if raw == "" {
				continue
			}
			date, ok := forms.ParseDate(raw)
			if !ok {
				errs.Add(col+bound, forms.MsgInvalidDate)
				continue
			}
			if bound == "_from" {
				q = q.Where(storage.GTE(col, date))
			} else {
				q = q.Where(storage.LTE(col, date))
			}
		}
	}
	return q, errs.Err()
}
