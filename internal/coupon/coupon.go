// Package coupon pulls promotional codes out of rendered post markup.
package coupon

import "regexp"

var (
	// "Coupon Code:" followed by zero or more inline span tags and a bolded token,
	// e.g. `Coupon Code: <b>SAVE20</b>`, `Coupon Code:</span> <b>SAVE20</b>` or
	// `Coupon Code: <span>x</span> <b>SAVE20</b>`
	markupPattern = regexp.MustCompile(`Coupon Code:\s*(?:</?span[^>]*>[^<]*)*<b>(\w+)</b>`)

	// "Coupon Code:" followed directly by the token
	plainPattern = regexp.MustCompile(`Coupon Code:\s*([A-Za-z0-9]+)`)

	patterns = []*regexp.Regexp{markupPattern, plainPattern}
)

// ExtractCouponCode returns the first capture of the first pattern that matches html.
// Both patterns are permissive and may over- or under-match.
func ExtractCouponCode(html string) (string, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(html); m != nil {
			return m[1], true
		}
	}
	return "", false
}
