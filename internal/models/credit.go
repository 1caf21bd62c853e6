package models

// CreditCost is the price of a generation, derived only from duration and tier
type CreditCost struct {
	Credits    int       `json:"credits"`
	Minutes    int       `json:"minutes"`
	Tier       ModelTier `json:"tier"`
	Chunked    bool      `json:"chunked"`
	Multiplier float64   `json:"multiplier"`
	Overhead   float64   `json:"overhead"`
}
