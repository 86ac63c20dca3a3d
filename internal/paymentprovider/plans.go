package paymentprovider

// Plan тарифный план подписки.
type Plan struct {
	ProductID   string `json:"id"`
	PriceID     string `json:"price_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Period      string `json:"period"`
	Popular     bool   `json:"popular"`
	Savings     string `json:"savings,omitempty"`
}

var plans = []Plan{
	{
		ProductID:   "prod_SWmIqVQm9L3krl",
		PriceID:     "price_1RbijS4JrlJotBXLm4zsLCC8",
		Name:        "Weekly Plan",
		Description: "Perfect for trying out premium features",
		Price:       "₹49",
		Period:      "/week",
	},
	{
		ProductID:   "prod_SWmLDQsYM0uDFM",
		PriceID:     "price_1RbinE4JrlJotBXLZ1G7UIQg",
		Name:        "Monthly Plan",
		Description: "Great for regular users",
		Price:       "₹199",
		Period:      "/month",
		Popular:     true,
	},
	{
		ProductID:   "prod_SWmKFLTJWR35i1",
		PriceID:     "price_1Rbilr4JrlJotBXLRbsUk0PG",
		Name:        "Yearly Plan",
		Description: "Best value - Save 50%!",
		Price:       "₹1,199",
		Period:      "/year",
		Savings:     "Save ₹1,189",
	},
}

// Plans возвращает копию каталога тарифов.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByPriceID ищет тариф по идентификатору цены.
func PlanByPriceID(priceID string) (Plan, bool) {
	for _, p := range plans {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}
