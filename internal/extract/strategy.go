package extract

import (
	"fmt"
	"regexp"
)

// Strategy is the closed set of seller-specific price patterns. Sellers
// without a dedicated entry fall through to StrategyDefault.
type Strategy int

const (
	// StrategyDefault matches "current Price/SKU ... $ n" with either comma
	// or dot accepted as a group separator.
	StrategyDefault Strategy = iota
	// StrategyOptcorp matches optcorp.com product pages, where the dollar
	// amount can trail the Price/SKU anchor by a few hundred characters.
	StrategyOptcorp
)

// Window sizes: maximum characters between the Price/SKU anchor and the
// dollar sign for each strategy.
const (
	optcorpWindow = 300
	defaultWindow = 20
)

var (
	optcorpPattern = regexp.MustCompile(fmt.Sprintf(
		`(?is)(price|sku).{1,%d}\$.*?(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`, optcorpWindow))

	// The group separators deliberately accept both "," and "." in either
	// position; dot-grouped values will misparse downstream. The plain
	// digit-run alternative covers prices written without any grouping.
	defaultPattern = regexp.MustCompile(fmt.Sprintf(
		`(?is)(current)*\s(price|sku).{0,%d}\$\s*((?:\d{1,3}(?:[.,]\d{3})*|\d+)[.,]\d{2})`, defaultWindow))
)

// StrategyFor selects the strategy by exact seller id.
func StrategyFor(sellerID string) Strategy {
	switch sellerID {
	case "optcorp.com":
		return StrategyOptcorp
	default:
		return StrategyDefault
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyOptcorp:
		return "optcorp"
	default:
		return "default"
	}
}

// FindRawPrice returns the first raw price captured in the filtered text.
func (s Strategy) FindRawPrice(text string) (string, bool) {
	switch s {
	case StrategyOptcorp:
		m := optcorpPattern.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[2], true
	default:
		m := defaultPattern.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[3], true
	}
}
