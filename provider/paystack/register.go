package paystack

import "github.com/paybridge/paybridge/provider"

func init() {
	provider.Register("paystack", NewProvider)
}
