package flutterwave

import "github.com/paybridge/paybridge/provider"

func init() {
	provider.Register("flutterwave", NewProvider)
}
