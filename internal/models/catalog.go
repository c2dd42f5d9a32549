package models

// Choice is one entry of a closed enumeration: the stored code and the label
// shown to users.
type Choice struct {
	Code  string
	Label string
}

// Catalog holds the closed enumerations an expense is validated against.
type Catalog struct {
	Currencies []Choice
	Categories []Choice
}

// DefaultCatalog returns the enumerations the schema is built for.
func DefaultCatalog() Catalog {
	return Catalog{
		Currencies: []Choice{
			{"GBR", "GBP"},
			{"EUR", "EUR"},
		},
		Categories: []Choice{
			{"MEALS", "Meals"},
			{"TRANSPORT", "Transport"},
			{"ACCOMMODATION", "Accommodation"},
			{"FLIGHTS", "Flights"},
			{"CAR_RENTAL", "Car Rental"},
			{"OTHER", "Other"},
		},
	}
}

// HasCurrency reports whether code is a known currency code.
func (c Catalog) HasCurrency(code string) bool {
	return hasCode(c.Currencies, code)
}

// HasCategory reports whether code is a known category code.
func (c Catalog) HasCategory(code string) bool {
	return hasCode(c.Categories, code)
}

// CurrencyLabel returns the display label of a currency code, or the code
// itself when unknown.
func (c Catalog) CurrencyLabel(code string) string {
	return label(c.Currencies, code)
}

// CategoryLabel returns the display label of a category code, or the code
// itself when unknown.
func (c Catalog) CategoryLabel(code string) string {
	return label(c.Categories, code)
}

func hasCode(choices []Choice, code string) bool {
	for _, ch := range choices {
		if ch.Code == code {
			return true
		}
	}
	return false
}

func label(choices []Choice, code string) string {
	for _, ch := range choices {
		if ch.Code == code {
			return ch.Label
		}
	}
	return code
}
