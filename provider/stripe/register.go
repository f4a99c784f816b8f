package stripe

import "github.com/paybridge/paybridge/provider"

func init() {
	provider.Register("stripe", NewProvider)
}
