// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package fetch

import (
	"strings"

	"github.com/tomtom215/refectory/internal/models"
)

// normalizeCategory converts one upstream category into a LocationMenu,
// cleaning up names and item metadata.
func normalizeCategory(category categoryPayload) models.LocationMenu {
	items := make([]models.Item, 0, len(category.Items))
	for _, item := range category.Items {
		items = append(items, normalizeItem(item))
	}
	return models.LocationMenu{
		Name:  strings.TrimSpace(category.Name),
		Items: items,
	}
}

// normalizeItem cleans one upstream item:
//   - names, descriptions and portions are whitespace-trimmed
//   - "^" markers are stripped from ingredient lists
//   - nutrient names drop their parenthesized unit suffix ("Protein (g)" ->
//     "Protein") and values join the numeric part with the unit ("12g");
//     zero and dash values are dropped entirely
//   - only filters of type "label" are kept (allergen/diet labels)
func normalizeItem(item itemPayload) models.Item {
	nutrients := make(map[string]string, len(item.Nutrients))
	for _, n := range item.Nutrients {
		value := strings.TrimSpace(n.ValueNumeric)
		if value == "" || value == "0" || value == "-" {
			continue
		}
		name, _, _ := strings.Cut(n.Name, " (")
		nutrients[strings.TrimSpace(name)] = value + strings.TrimSpace(n.UOM)
	}

	var filters []string
	for _, f := range item.Filters {
		if strings.TrimSpace(f.Type) == "label" {
			filters = append(filters, strings.TrimSpace(f.Name))
		}
	}

	return models.Item{
		Name:        strings.TrimSpace(item.Name),
		Description: strings.TrimSpace(item.Desc),
		Portion:     strings.TrimSpace(item.Portion),
		Ingredients: strings.ReplaceAll(strings.TrimSpace(item.Ingredients), "^", ""),
		Nutrients:   nutrients,
		Filters:     filters,
	}
}
