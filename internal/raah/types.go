// Package raah is the typed client for the Raah places-search service:
// category listing, region-paginated place listing, polygon/camera
// bundle search, POI detail, and reverse geocoding. All endpoints are
// public web frontends; the client tolerates their failure modes (429
// storms, 404-as-end-of-data, loosely shaped payloads) rather than
// assuming they behave.
package raah

import "encoding/json"

// CategoryGroup is one top-level entry of the bundle-list response.
type CategoryGroup struct {
	Title      string     `json:"title"`
	Categories []Category `json:"categories"`
}

// Category is a searchable place category.
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type categoryListResponse struct {
	Results []CategoryGroup `json:"results"`
}

// CategoryOption is a flattened category ready for selection:
// slug plus a "group > name" display string.
type CategoryOption struct {
	Slug    string
	Display string
}

// PlacesPage is one page of the region-paginated listing. A page with a
// non-empty Detail, no items, or a missing slug signals end of data.
type PlacesPage struct {
	Slug         string            `json:"slug"`
	Items        []string          `json:"items"`
	ItemElements []json.RawMessage `json:"item_element_list"`
	Detail       string            `json:"detail"`
}

// EndOfData reports whether this page terminates the crawl: an explicit
// detail message, no items, or a structurally invalid payload.
func (p *PlacesPage) EndOfData() bool {
	return p.Detail != "" || p.Slug == "" || len(p.Items) == 0
}

// Geometry is a GeoJSON geometry with coordinates kept raw: upstream
// mixes Points and Polygons freely and the dedup step walks the nesting
// itself.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// FeatureProperties carries the subset of feature properties the crawl
// cares about.
type FeatureProperties struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Token    string  `json:"token"`
	Rate     float64 `json:"rate"`
}

// Feature is a GeoJSON feature returned by a bundle search.
type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   Geometry          `json:"geometry"`
}

// BundleSearchResult is the response of the polygon/camera search.
type BundleSearchResult struct {
	GeoJSON struct {
		Features []Feature `json:"features"`
	} `json:"geojson"`
	POITokens []string `json:"poi-tokens"`
}

// Field is one entry of a POI detail's loose fields array, identified
// by its type/icon tag pair rather than by position.
type Field struct {
	Type   string       `json:"type"`
	Icon   string       `json:"icon"`
	Value  string       `json:"value"`
	Text   string       `json:"text"`
	Fields []HoursBlock `json:"fields"`
}

// HoursBlock pairs day titles with opening-hour strings inside a
// dropdown field.
type HoursBlock struct {
	Titles []string `json:"titles"`
	Items  []string `json:"items"`
}

// SEOSchema is the schema.org block some details carry; used as a
// fallback source for address and phone.
type SEOSchema struct {
	Telephone string `json:"telephone"`
	Address   struct {
		AddressLocality string `json:"addressLocality"`
	} `json:"address"`
}

// Rating is a POI's aggregate score.
type Rating struct {
	Score *float64 `json:"score"`
	Count int      `json:"count"`
}

// POIDetail is the free-form detail record of a single place. Every
// field is optional; extraction goes through the helpers in extract.go.
type POIDetail struct {
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Rating     *Rating   `json:"rating"`
	Geometry   *Geometry `json:"geometry"`
	Fields     []Field   `json:"fields"`
	SEODetails struct {
		Schemas []SEOSchema `json:"schemas"`
	} `json:"seo_details"`
}

// FallbackCategories is substituted when the initial category fetch
// fails, so a session can still start (display strings stay in Persian
// to match the upstream data).
var FallbackCategories = []CategoryOption{
	{Slug: "restaurant", Display: "🍽️ رستوران"},
	{Slug: "cafe", Display: "☕ کافه"},
	{Slug: "shopping-mall", Display: "🛍️ مرکز خرید"},
	{Slug: "hotel", Display: "🏨 هتل"},
	{Slug: "hospital", Display: "🏥 بیمارستان"},
	{Slug: "pharmacy", Display: "💊 داروخانه"},
	{Slug: "park", Display: "🌳 پارک"},
	{Slug: "cinema", Display: "🎬 سینما"},
	{Slug: "bank", Display: "🏦 بانک"},
	{Slug: "gas-station", Display: "⛽ پمپ بنزین"},
	{Slug: "confectionery", Display: "🍰 شیرینی فروشی"},
	{Slug: "bakery", Display: "🥖 نانوایی"},
	{Slug: "subway-station", Display: "🚇 مترو"},
	{Slug: "bus-station", Display: "🚌 اتوبوس"},
	{Slug: "taxi-station", Display: "🚕 تاکسی"},
}
