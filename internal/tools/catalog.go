package tools

import (
	"encoding/json"
	"net/http"

	"github.com/flipagent/flipagent/internal/platform"
	"github.com/flipagent/flipagent/internal/schema"
)

// definition binds a descriptor to the marketplace operation that serves it.
// Tools without an operation are served by local handlers.
type definition struct {
	desc schema.ToolDescriptor
	op   *platform.Operation
	// record persists a successful operation's outcome to the data store.
	record recordKind
}

type recordKind int

const (
	recordNone recordKind = iota
	recordScan
	recordListing
	recordListingEnded
	recordOrder
)

func def(name, description, inputSchema string, meta schema.ToolMetadata) definition {
	return definition{desc: schema.ToolDescriptor{
		Name:        name,
		Description: description,
		InputSchema: json.RawMessage(inputSchema),
		Metadata:    meta,
	}}
}

// remote marks d as served by a marketplace operation. Remote tools always
// require credentials for their platform.
func (d definition) remote(method, path string, record recordKind) definition {
	d.desc.Metadata.RequiresCredentials = true
	d.op = &platform.Operation{Platform: d.desc.Metadata.Platform, Method: method, Path: path}
	d.record = record
	return d
}

func meta(p schema.Platform, c schema.Category) schema.ToolMetadata {
	return schema.ToolMetadata{Platform: p, Category: c}
}

const (
	scanSchema = `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1, "description": "Keywords, brand or model"},
			"max_results": {"type": "integer", "minimum": 1, "maximum": 50},
			"category": {"type": "string", "description": "Optional marketplace category"}
		},
		"required": ["query"]
	}`
	orderListSchema = `{
		"type": "object",
		"properties": {
			"status": {"type": "string"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		}
	}`
	inventoryUpdateSchema = `{
		"type": "object",
		"properties": {
			"sku": {"type": "string", "minLength": 1},
			"quantity": {"type": "integer", "minimum": 0}
		},
		"required": ["sku", "quantity"]
	}`
	platformEnum = `{"type": "string", "enum": ["amazon", "ebay", "walmart", "aliexpress"]}`
)

func itemSchema(key string) string {
	return `{
		"type": "object",
		"properties": {"` + key + `": {"type": "string", "minLength": 1}},
		"required": ["` + key + `"]
	}`
}

func listingSchema(required ...string) string {
	req, _ := json.Marshal(append([]string{"title", "price"}, required...))
	return `{
		"type": "object",
		"properties": {
			"sku": {"type": "string"},
			"title": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"price": {"type": "number", "exclusiveMinimum": 0},
			"quantity": {"type": "integer", "minimum": 1},
			"condition": {"type": "string"},
			"source_platform": {"type": "string", "description": "Where the item will be bought"},
			"source_cost": {"type": "number", "minimum": 0}
		},
		"required": ` + string(req) + `
	}`
}

// definitions is the static tool catalog, in registration order.
var definitions = []definition{
	// Meta and credentials: always offered.
	def("search_tools", "Search all available tools by keyword, platform or category. Use this when the tool you need is not in your current list.", `{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"platform": {"type": "string", "enum": ["amazon", "ebay", "walmart", "aliexpress", "general"]},
			"category": {"type": "string", "enum": ["scanning", "pricing", "listings", "orders", "analytics", "inventory", "credentials", "meta", "general"]}
		}
	}`, meta(schema.PlatformGeneral, schema.CategoryMeta)),
	def("list_platforms", "List supported marketplaces and whether each is connected for the current user.",
		`{"type": "object", "properties": {}}`, meta(schema.PlatformGeneral, schema.CategoryMeta)),
	def("setup_credentials", "Store API credentials for a marketplace (e.g. access_token, api_key, app_id). Values are encrypted at rest.", `{
		"type": "object",
		"properties": {
			"platform": `+platformEnum+`,
			"credentials": {"type": "object", "minProperties": 1, "additionalProperties": {"type": "string"}}
		},
		"required": ["platform", "credentials"]
	}`, meta(schema.PlatformGeneral, schema.CategoryCredentials)),
	def("list_credentials", "Show which marketplaces have stored credentials, with secrets masked.",
		`{"type": "object", "properties": {}}`, meta(schema.PlatformGeneral, schema.CategoryCredentials)),
	def("remove_credentials", "Delete the stored credentials for a marketplace.", `{
		"type": "object",
		"properties": {"platform": `+platformEnum+`},
		"required": ["platform"]
	}`, meta(schema.PlatformGeneral, schema.CategoryCredentials)),

	// Pricing.
	def("fee_calculator", "Estimate marketplace selling fees and net payout for a sale price. eBay 13.25% + $0.30, Amazon 15% referral plus FBA fee, Walmart 15%, AliExpress 8%.", `{
		"type": "object",
		"properties": {
			"platform": `+platformEnum+`,
			"price": {"type": "number", "minimum": 0},
			"fba_fee": {"type": "number", "minimum": 0},
			"shipping": {"type": "number", "minimum": 0}
		},
		"required": ["platform", "price"]
	}`, meta(schema.PlatformGeneral, schema.CategoryPricing)),
	def("calculate_profit", "Calculate profit, margin and ROI for buying at one price and reselling on a marketplace.", `{
		"type": "object",
		"properties": {
			"buy_price": {"type": "number", "minimum": 0},
			"sell_price": {"type": "number", "minimum": 0},
			"sell_platform": `+platformEnum+`,
			"fba_fee": {"type": "number", "minimum": 0},
			"shipping": {"type": "number", "minimum": 0}
		},
		"required": ["buy_price", "sell_price", "sell_platform"]
	}`, meta(schema.PlatformGeneral, schema.CategoryPricing)),

	// Scanning.
	def("scan_amazon", "Search Amazon products by keyword and return prices, ASINs and ratings.", scanSchema,
		meta(schema.PlatformAmazon, schema.CategoryScanning)).remote(http.MethodGet, "/catalog/items", recordScan),
	def("scan_ebay", "Search eBay listings by keyword and return prices, item ids and sold counts.", scanSchema,
		meta(schema.PlatformEbay, schema.CategoryScanning)).remote(http.MethodGet, "/buy/browse/v1/item_summary/search", recordScan),
	def("scan_walmart", "Search Walmart products by keyword and return prices and item ids.", scanSchema,
		meta(schema.PlatformWalmart, schema.CategoryScanning)).remote(http.MethodGet, "/v3/items/search", recordScan),
	def("scan_aliexpress", "Search AliExpress products by keyword for dropshipping sources, with prices and shipping times.", scanSchema,
		meta(schema.PlatformAliExpress, schema.CategoryScanning)).remote(http.MethodGet, "/products/search", recordScan),
	def("compare_prices", "Search every connected marketplace for the same product and report the best buy/sell price gap (arbitrage opportunity) after fees.", `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1},
			"platforms": {"type": "array", "items": `+platformEnum+`},
			"shipping": {"type": "number", "minimum": 0}
		},
		"required": ["query"]
	}`, meta(schema.PlatformGeneral, schema.CategoryScanning)),

	// Product detail.
	def("get_amazon_product", "Get full Amazon product details by ASIN.", itemSchema("asin"),
		meta(schema.PlatformAmazon, schema.CategoryScanning)).remote(http.MethodGet, "/catalog/items/{asin}", recordNone),
	def("get_ebay_item", "Get full eBay item details by item id.", itemSchema("item_id"),
		meta(schema.PlatformEbay, schema.CategoryScanning)).remote(http.MethodGet, "/buy/browse/v1/item/{item_id}", recordNone),
	def("get_walmart_item", "Get full Walmart item details by item id.", itemSchema("item_id"),
		meta(schema.PlatformWalmart, schema.CategoryScanning)).remote(http.MethodGet, "/v3/items/{item_id}", recordNone),
	def("get_aliexpress_product", "Get AliExpress product details, variants and shipping options by product id.", itemSchema("product_id"),
		meta(schema.PlatformAliExpress, schema.CategoryScanning)).remote(http.MethodGet, "/products/{product_id}", recordNone),
	def("get_amazon_fees", "Get Amazon's own referral and FBA fee estimate for an ASIN at a price.", `{
		"type": "object",
		"properties": {
			"asin": {"type": "string", "minLength": 1},
			"price": {"type": "number", "exclusiveMinimum": 0}
		},
		"required": ["asin", "price"]
	}`, meta(schema.PlatformAmazon, schema.CategoryPricing)).remote(http.MethodGet, "/products/fees/{asin}", recordNone),

	// Listings.
	def("create_ebay_listing", "Create a fixed-price eBay listing.", listingSchema(),
		meta(schema.PlatformEbay, schema.CategoryListings)).remote(http.MethodPost, "/sell/inventory/v1/offer", recordListing),
	def("update_ebay_listing", "Change the price or quantity of an eBay listing.", `{
		"type": "object",
		"properties": {
			"offer_id": {"type": "string", "minLength": 1},
			"price": {"type": "number", "exclusiveMinimum": 0},
			"quantity": {"type": "integer", "minimum": 0}
		},
		"required": ["offer_id"]
	}`, meta(schema.PlatformEbay, schema.CategoryListings)).remote(http.MethodPut, "/sell/inventory/v1/offer/{offer_id}", recordNone),
	def("end_ebay_listing", "End (withdraw) an eBay listing.", itemSchema("offer_id"),
		meta(schema.PlatformEbay, schema.CategoryListings)).remote(http.MethodDelete, "/sell/inventory/v1/offer/{offer_id}", recordListingEnded),
	def("create_amazon_listing", "Create or replace an Amazon listing for a SKU.", listingSchema("sku"),
		meta(schema.PlatformAmazon, schema.CategoryListings)).remote(http.MethodPut, "/listings/items/{sku}", recordListing),
	def("create_walmart_listing", "Create a Walmart marketplace item.", listingSchema("sku"),
		meta(schema.PlatformWalmart, schema.CategoryListings)).remote(http.MethodPost, "/v3/items", recordListing),
	def("list_listings", "List listings created through flipagent, optionally filtered by platform and status.", `{
		"type": "object",
		"properties": {
			"platform": `+platformEnum+`,
			"status": {"type": "string", "enum": ["active", "ended"]}
		}
	}`, meta(schema.PlatformGeneral, schema.CategoryListings)),

	// Orders.
	def("get_ebay_orders", "Fetch recent eBay sales orders.", orderListSchema,
		meta(schema.PlatformEbay, schema.CategoryOrders)).remote(http.MethodGet, "/sell/fulfillment/v1/order", recordNone),
	def("get_amazon_orders", "Fetch recent Amazon orders.", orderListSchema,
		meta(schema.PlatformAmazon, schema.CategoryOrders)).remote(http.MethodGet, "/orders/v0/orders", recordNone),
	def("get_walmart_orders", "Fetch recent Walmart orders.", orderListSchema,
		meta(schema.PlatformWalmart, schema.CategoryOrders)).remote(http.MethodGet, "/v3/orders", recordNone),
	def("place_aliexpress_order", "Place a dropship order on AliExpress shipped directly to the buyer.", `{
		"type": "object",
		"properties": {
			"product_id": {"type": "string", "minLength": 1},
			"quantity": {"type": "integer", "minimum": 1},
			"shipping_address": {"type": "object", "minProperties": 1},
			"cost": {"type": "number", "minimum": 0, "description": "Total purchase cost"},
			"sale_platform": `+platformEnum+`,
			"sale_price": {"type": "number", "minimum": 0}
		},
		"required": ["product_id", "quantity", "shipping_address"]
	}`, meta(schema.PlatformAliExpress, schema.CategoryOrders)).remote(http.MethodPost, "/orders", recordOrder),
	def("track_aliexpress_order", "Get shipping status and tracking number of an AliExpress order.", itemSchema("order_id"),
		meta(schema.PlatformAliExpress, schema.CategoryOrders)).remote(http.MethodGet, "/orders/{order_id}/tracking", recordNone),
	def("upload_ebay_tracking", "Mark an eBay order shipped by uploading its tracking number.", `{
		"type": "object",
		"properties": {
			"order_id": {"type": "string", "minLength": 1},
			"tracking_number": {"type": "string", "minLength": 1},
			"carrier": {"type": "string", "minLength": 1}
		},
		"required": ["order_id", "tracking_number", "carrier"]
	}`, meta(schema.PlatformEbay, schema.CategoryOrders)).remote(http.MethodPost, "/sell/fulfillment/v1/order/{order_id}/shipping_fulfillment", recordNone),
	def("list_orders", "List orders recorded by flipagent, optionally filtered by status.", `{
		"type": "object",
		"properties": {"status": {"type": "string"}}
	}`, meta(schema.PlatformGeneral, schema.CategoryOrders)),
	def("update_order_status", "Update the status (and optionally tracking number) of a recorded order.", `{
		"type": "object",
		"properties": {
			"order_id": {"type": "integer", "minimum": 1},
			"status": {"type": "string", "enum": ["pending", "ordered", "shipped", "delivered", "cancelled", "refunded"]},
			"tracking": {"type": "string"}
		},
		"required": ["order_id", "status"]
	}`, meta(schema.PlatformGeneral, schema.CategoryOrders)),

	// Inventory.
	def("get_amazon_inventory", "Get FBA inventory levels.", `{
		"type": "object",
		"properties": {"sku": {"type": "string"}}
	}`, meta(schema.PlatformAmazon, schema.CategoryInventory)).remote(http.MethodGet, "/fba/inventory/v1/summaries", recordNone),
	def("update_ebay_inventory", "Set the available quantity of an eBay inventory item.", inventoryUpdateSchema,
		meta(schema.PlatformEbay, schema.CategoryInventory)).remote(http.MethodPut, "/sell/inventory/v1/inventory_item/{sku}", recordNone),
	def("update_walmart_inventory", "Set the available quantity of a Walmart item.", inventoryUpdateSchema,
		meta(schema.PlatformWalmart, schema.CategoryInventory)).remote(http.MethodPut, "/v3/inventory", recordNone),

	// Analytics.
	def("profit_report", "Summarise revenue, costs, fees, profit and margin over recent days.", `{
		"type": "object",
		"properties": {"days": {"type": "integer", "minimum": 1, "maximum": 365}}
	}`, meta(schema.PlatformGeneral, schema.CategoryAnalytics)),
	def("list_opportunities", "List recorded arbitrage opportunities, most profitable first.", `{
		"type": "object",
		"properties": {
			"min_profit": {"type": "number"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		}
	}`, meta(schema.PlatformGeneral, schema.CategoryAnalytics)),

	// General.
	def("fetch_product_page", "Fetch a product web page and extract its readable text (title, description, price mentions).", `{
		"type": "object",
		"properties": {
			"url": {"type": "string", "minLength": 1},
			"max_chars": {"type": "integer", "minimum": 100}
		},
		"required": ["url"]
	}`, meta(schema.PlatformGeneral, schema.CategoryGeneral)),
	def("schedule_scan", "Schedule a recurring or one-time agent task, such as re-scanning prices. Give exactly one of every_minutes, cron_expr or at.", `{
		"type": "object",
		"properties": {
			"message": {"type": "string", "minLength": 1, "description": "What the agent should do when the job fires"},
			"every_minutes": {"type": "integer", "minimum": 1},
			"cron_expr": {"type": "string", "description": "Cron expression like '0 9 * * *'"},
			"tz": {"type": "string", "description": "IANA timezone for cron expressions"},
			"at": {"type": "string", "description": "ISO datetime for one-time execution"},
			"deliver": {"type": "boolean", "description": "Send the result back to this chat"}
		},
		"required": ["message"]
	}`, meta(schema.PlatformGeneral, schema.CategoryGeneral)),
	def("list_scheduled_scans", "List scheduled tasks.", `{"type": "object", "properties": {}}`,
		meta(schema.PlatformGeneral, schema.CategoryGeneral)),
	def("cancel_scheduled_scan", "Cancel a scheduled task by id.", itemSchema("job_id"),
		meta(schema.PlatformGeneral, schema.CategoryGeneral)),
}

// Catalog returns the descriptors of every built-in tool in registration order.
func Catalog() []schema.ToolDescriptor {
	out := make([]schema.ToolDescriptor, len(definitions))
	for i, d := range definitions {
		out[i] = d.desc
	}
	return out
}
