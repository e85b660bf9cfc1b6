package extractor

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"storewatch/internal/domain"
)

var sectionItemKeys = []string{"items", "itemList", "menuItems", "products", "dishes", "dishList"}

// grabMenu walks the GrabFood payload shapes. Sections live under
// menu.categories, menu.sections, merchant.menu.* or merchant.sections, and
// items under several key spellings depending on API version.
func (e *Extractor) grabMenu(body []byte) ([]domain.Item, bool) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false
	}

	roots := []map[string]any{doc}
	if data, ok := doc["data"].(map[string]any); ok {
		roots = append(roots, data)
	}

	var sections []map[string]any
	for _, root := range roots {
		sections = append(sections, menuSections(root)...)
		if merchant, ok := root["merchant"].(map[string]any); ok {
			sections = append(sections, menuSections(merchant)...)
			sections = append(sections, asSectionList(merchant["sections"])...)
		}
	}
	if len(sections) == 0 {
		return nil, false
	}

	var out []domain.Item
	for _, sec := range sections {
		category, _ := sec["name"].(string)
		for _, key := range sectionItemKeys {
			for _, raw := range asSectionList(sec[key]) {
				name := itemName(raw)
				if name == "" {
					continue
				}
				if avail, present := raw["available"].(bool); !present || avail {
					continue
				}
				out = append(out, domain.Item{
					Name:       name,
					Category:   strings.TrimSpace(category),
					Code:       stringField(raw, "ID", "id", "code"),
					Price:      itemPrice(raw),
					Confidence: domain.ConfidenceStructured,
				})
			}
		}
	}
	return domain.DedupItems(out), true
}

// pandaMenu walks the Foodpanda vendor payload: data.menus[].products[] with
// an is_available flag that defaults to true when absent.
func (e *Extractor) pandaMenu(body []byte) ([]domain.Item, bool) {
	var doc struct {
		Data struct {
			Menus []struct {
				Name     string `json:"name"`
				Products []struct {
					Name              string `json:"name"`
					Code              string `json:"code"`
					IsAvailable       *bool  `json:"is_available"`
					ProductVariations []struct {
						Price json.Number `json:"price"`
					} `json:"product_variations"`
				} `json:"products"`
			} `json:"menus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false
	}
	if len(doc.Data.Menus) == 0 {
		return nil, false
	}

	var out []domain.Item
	for _, menu := range doc.Data.Menus {
		for _, p := range menu.Products {
			if p.IsAvailable == nil || *p.IsAvailable || strings.TrimSpace(p.Name) == "" {
				continue
			}
			item := domain.Item{
				Name:       strings.TrimSpace(p.Name),
				Category:   strings.TrimSpace(menu.Name),
				Code:       p.Code,
				Confidence: domain.ConfidenceStructured,
			}
			if len(p.ProductVariations) > 0 {
				if price, err := decimal.NewFromString(p.ProductVariations[0].Price.String()); err == nil {
					item.Price = price
				}
			}
			out = append(out, item)
		}
	}
	return domain.DedupItems(out), true
}

func menuSections(root map[string]any) []map[string]any {
	menu, ok := root["menu"].(map[string]any)
	if !ok {
		return nil
	}
	if secs := asSectionList(menu["categories"]); len(secs) > 0 {
		return secs
	}
	return asSectionList(menu["sections"])
}

func asSectionList(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func itemName(item map[string]any) string {
	for _, key := range []string{"name", "title"} {
		if s, ok := item[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// itemPrice reads either a minor-unit integer or a plain price field.
func itemPrice(item map[string]any) decimal.Decimal {
	if v, ok := item["priceInMinorUnit"].(float64); ok && v > 0 {
		return decimal.NewFromFloat(v).Div(decimal.NewFromInt(100))
	}
	if v, ok := item["price"].(float64); ok && v > 0 {
		return decimal.NewFromFloat(v)
	}
	return decimal.Decimal{}
}
