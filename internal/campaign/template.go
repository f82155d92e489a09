package campaign

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/elecmate/winback-service/internal/models"
)

// Version selects one of the alternative win-back email layouts.
type Version string

// Template versions. V1 is the default when a request leaves the field blank.
const (
	VersionV1 Version = "v1"
	VersionV2 Version = "v2"
	VersionV3 Version = "v3"
)

// ParseVersion maps a request value to a Version, defaulting to v1.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "", string(VersionV1):
		return VersionV1, nil
	case string(VersionV2):
		return VersionV2, nil
	case string(VersionV3):
		return VersionV3, nil
	default:
		return "", fmt.Errorf("unknown template version: %q", s)
	}
}

// offerSection is one product pitch block shared across template versions.
type offerSection struct {
	Title string
	Body  string
}

var offerSections = []offerSection{
	{
		Title: "18th Edition & EICR guides",
		Body:  "Regs references, inspection walk-throughs and certificate templates, kept in step with BS 7671 amendments.",
	},
	{
		Title: "AI fault-finding assistant",
		Body:  "Describe the symptoms on site and get a ranked list of likely causes with test steps.",
	},
	{
		Title: "Apprentice & upskilling courses",
		Body:  "Structured modules from Level 2 through testing and inspection, with progress tracking.",
	},
	{
		Title: "Quoting & invoicing tools",
		Body:  "Build priced quotes from your own day rate and materials list, then send them from your phone.",
	},
	{
		Title: "Business development library",
		Body:  "Winning domestic and commercial work, pricing jobs properly and growing past the one-man band.",
	},
}

// sectionsFor picks which pitch blocks a version shows. V1 leads with the
// full toolkit, V2 is tools-first, V3 is the business angle.
func sectionsFor(v Version) []offerSection {
	switch v {
	case VersionV2:
		return offerSections[:3]
	case VersionV3:
		return offerSections[3:]
	default:
		return offerSections
	}
}

// Render produces the subject line and HTML body for a win-back email. It is
// pure: no I/O, and deterministic for a given user, version and pricing apart
// from the footer copyright year. FullName is the only untrusted variable
// field and is escaped before embedding.
func Render(user models.EligibleUser, version Version, pricing Pricing) (subject, htmlBody string) {
	name := user.FirstName()
	if name == "" {
		name = "there"
	}
	name = html.EscapeString(name)

	switch version {
	case VersionV2:
		subject = fmt.Sprintf("Still doing it the hard way, %s?", name)
	case VersionV3:
		subject = fmt.Sprintf("%s, your tools are still here - half price", name)
	default:
		subject = fmt.Sprintf("%s, come back to Elec-Mate for £%.2f/month", name, pricing.MonthlyPrice)
	}

	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Arial,Helvetica,sans-serif;color:#1a1a2e;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
<tr><td style="background:#16213e;padding:24px;text-align:center;">
<span style="color:#ffd700;font-size:24px;font-weight:bold;">Elec-Mate</span>
</td></tr>
<tr><td style="padding:32px;">
`)

	fmt.Fprintf(&b, "<p style=\"font-size:18px;\">Hi %s,</p>\n", name)
	b.WriteString(introFor(version))

	b.WriteString(`<table role="presentation" width="100%" cellpadding="0" cellspacing="0">`)
	for _, s := range sectionsFor(version) {
		fmt.Fprintf(&b, `
<tr><td style="padding:12px 0;border-bottom:1px solid #eee;">
<p style="margin:0;font-weight:bold;">%s</p>
<p style="margin:4px 0 0;color:#555;font-size:14px;">%s</p>
</td></tr>`, s.Title, s.Body)
	}
	b.WriteString("</table>\n")

	// pricing block: every figure derives from the Pricing struct at render time
	fmt.Fprintf(&b, `
<table role="presentation" width="100%%" cellpadding="0" cellspacing="0" style="margin-top:24px;background:#f8f9fa;border-radius:8px;">
<tr><td style="padding:20px;text-align:center;">
<p style="margin:0;font-size:16px;"><s style="color:#999;">£%.2f/month</s>
<span style="font-size:24px;font-weight:bold;color:#16213e;"> £%.2f/month</span></p>
<p style="margin:8px 0 0;color:#555;font-size:14px;">or £%.2f/year (works out at £%.2f/month &mdash; save £%.2f on the standard yearly price)</p>
</td></tr>
</table>
<p style="text-align:center;margin:28px 0;">
<a href="https://elec-mate.co.uk/upgrade?offer=winback" style="background:#ffd700;color:#16213e;text-decoration:none;font-weight:bold;padding:14px 32px;border-radius:6px;display:inline-block;">Claim your offer</a>
</p>
`,
		pricing.StandardMonthly, pricing.MonthlyPrice,
		pricing.YearlyPrice, pricing.YearlyMonthlyEquivalent(), pricing.YearlySaving())

	fmt.Fprintf(&b, `</td></tr>
<tr><td style="padding:16px;text-align:center;background:#f4f5f7;color:#888;font-size:12px;">
&copy; %d Elec-Mate Ltd &middot; You received this because you tried Elec-Mate.
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`, time.Now().Year())

	return subject, b.String()
}

func introFor(v Version) string {
	switch v {
	case VersionV2:
		return `<p style="color:#444;">Paper certs, guesswork fault-finding and quotes written at 9pm. We built Elec-Mate so you don't have to do any of that, and your account is still right where you left it.</p>
`
	case VersionV3:
		return `<p style="color:#444;">Your trial ended, but everything you set up is still saved. Come back at half the standard price and pick up where you left off.</p>
`
	default:
		return `<p style="color:#444;">Your free trial has ended, and we'd rather not see you go. Here's what you're missing, at a price we only offer returning sparks:</p>
`
	}
}
