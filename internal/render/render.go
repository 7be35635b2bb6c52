// Package render substitutes subscriber fields into message templates.
package render

import (
	"strings"

	"github.com/talkincode/wanotify/internal/domain"
)

// Placeholder tokens
const (
	TokenName    = "{name}"
	TokenPhone   = "{phone}"
	TokenEndDate = "{endDate}"
	TokenOrder   = "{order}"
)

const dateLayout = "2006-01-02"

// Context carries values that do not come from the subscriber record.
type Context struct {
	Order string
}

// Render replaces every known token in tpl, falling back to fallback when tpl
// is blank. Substituted values are not scanned again and unknown tokens stay
// as they are. The result is trimmed.
func Render(tpl string, sub *domain.Subscriber, ctx Context, fallback string) string {
	if strings.TrimSpace(tpl) == "" {
		tpl = fallback
	}

	var name, phone, endDate string
	if sub != nil {
		name = sub.DisplayName
		phone = sub.Identity
		if sub.EndsAt != nil {
			endDate = sub.EndsAt.UTC().Format(dateLayout)
		}
	}

	r := strings.NewReplacer(
		TokenName, name,
		TokenPhone, phone,
		TokenEndDate, endDate,
		TokenOrder, ctx.Order,
	)
	return strings.TrimSpace(r.Replace(tpl))
}
