package models

type NetworkName string

const (
	OneFinityTestnet NetworkName = "onefinity-testnet"
	OneFinityMainnet NetworkName = "onefinity-mainnet"
)

func (n NetworkName) String() string {
	return string(n)
}
