package merchant

import "github.com/shopspring/decimal"

// Sample returns the starter configuration written by ucp-init. Prices are
// minor currency units.
func Sample() *Config {
	return &Config{
		Name:       "My Store",
		Domain:     "http://localhost:3000",
		Currency:   "USD",
		TermsURL:   "https://example.com/terms",
		PrivacyURL: "https://example.com/privacy",
		TaxRate:    decimal.RequireFromString("0.08"),
		Items: []Item{
			{
				ID:          "item_001",
				Title:       "Classic T-Shirt",
				Description: "A comfortable cotton t-shirt",
				Price:       2500,
				SKU:         "TSH-001",
			},
			{
				ID:          "item_002",
				Title:       "Premium Hoodie",
				Description: "Warm and stylish hoodie",
				Price:       5999,
				SKU:         "HOO-001",
			},
		},
		ShippingOptions: []ShippingOption{
			{
				ID:            "standard",
				Title:         "Standard Shipping",
				Description:   "Arrives in 5-7 business days",
				Price:         500,
				EstimatedDays: "5-7 business days",
			},
			{
				ID:            "express",
				Title:         "Express Shipping",
				Description:   "Arrives in 2-3 business days",
				Price:         1500,
				EstimatedDays: "2-3 business days",
			},
			{
				ID:            "overnight",
				Title:         "Overnight Shipping",
				Description:   "Arrives next business day",
				Price:         2999,
				EstimatedDays: "1 business day",
			},
		},
		PaymentHandlers: []PaymentHandler{
			{
				Namespace: "com.stripe",
				ID:        "stripe_handler",
				Config:    map[string]string{"publishable_key": "pk_test_..."},
			},
			{
				Namespace: "com.paypal",
				ID:        "paypal_handler",
				Config:    map[string]string{"client_id": "your_paypal_client_id"},
			},
		},
		OAuth: &OAuthConfig{Provider: OAuthBuiltIn},
	}
}
