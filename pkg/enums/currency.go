package enums

// Currency is the settlement currency. The platform is single-currency.
type Currency string

const CurrencyEGP Currency = "EGP"

func (c Currency) IsValid() bool {
	return c == CurrencyEGP
}
