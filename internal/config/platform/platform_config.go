package platform

import "github.com/flipagent/flipagent/internal/schema"

// PlatformConfig is the REST endpoint of one marketplace.
type PlatformConfig struct {
	BaseURL           string  `json:"baseUrl"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
}

// PlatformsConfig holds the endpoints of every marketplace.
type PlatformsConfig struct {
	Amazon         PlatformConfig `json:"amazon"`
	Ebay           PlatformConfig `json:"ebay"`
	Walmart        PlatformConfig `json:"walmart"`
	AliExpress     PlatformConfig `json:"aliexpress"`
	TimeoutSeconds int            `json:"timeoutSeconds"`
}

func DefaultPlatformsConfig() PlatformsConfig {
	return PlatformsConfig{
		Amazon:         PlatformConfig{BaseURL: "https://sellingpartnerapi-na.amazon.com", RequestsPerSecond: 1},
		Ebay:           PlatformConfig{BaseURL: "https://api.ebay.com", RequestsPerSecond: 5},
		Walmart:        PlatformConfig{BaseURL: "https://marketplace.walmartapis.com", RequestsPerSecond: 5},
		AliExpress:     PlatformConfig{BaseURL: "https://api-sg.aliexpress.com", RequestsPerSecond: 2},
		TimeoutSeconds: 30,
	}
}

// ByPlatform returns the config of p, or nil for non-marketplace platforms.
func (c *PlatformsConfig) ByPlatform(p schema.Platform) *PlatformConfig {
	switch p {
	case schema.PlatformAmazon:
		return &c.Amazon
	case schema.PlatformEbay:
		return &c.Ebay
	case schema.PlatformWalmart:
		return &c.Walmart
	case schema.PlatformAliExpress:
		return &c.AliExpress
	}
	return nil
}
