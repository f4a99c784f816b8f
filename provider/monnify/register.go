package monnify

import "github.com/paybridge/paybridge/provider"

func init() {
	provider.Register("monnify", NewProvider)
}
