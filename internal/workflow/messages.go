package workflow

import "fmt"

// Outbound chat messages, in the order a successful run sends them
const (
	MsgSearching       = "🔍 Fetching the latest update..."
	MsgSearchingCoupon = "🎁 Looking for a coupon code..."
	MsgCouponNotFound  = "❌ No coupon code found"
	MsgFailed          = "⚠️ Failed to fetch the update, please check the logs"
)

// FormatPost renders the title and link message
func FormatPost(title, link string) string {
	return fmt.Sprintf("📢 Latest post: %s\n🔗 Link: %s", title, link)
}

// FormatCouponFound renders the coupon message
func FormatCouponFound(code string) string {
	return fmt.Sprintf("🎉 Coupon code found: %s", code)
}
