// Package grocery suggests a stock category from a free-text item name.
package grocery

import (
	"strings"

	"github.com/dukerupert/larder/internal/model"
)

const (
	FreshFood    = "Fresh Food"
	Pantry       = "Pantry"
	Frozen       = "Frozen"
	Beverages    = "Beverages"
	Cleaning     = "Cleaning"
	Medical      = "Medical"
	PersonalCare = "Personal Care"
	Accessories  = "Accessories"
)

// Categories lists the suggested categories in display order, fallback last.
var Categories = []string{FreshFood, Pantry, Frozen, Beverages, Cleaning, Medical, PersonalCare, Accessories, model.DefaultCategory}

// Categorize returns the suggested category for the given item name.
// Matching is case-insensitive: whole name first, then keyword containment
// in rule order. Falls back to model.DefaultCategory.
func Categorize(itemName string) string {
	name := model.NormalizeName(itemName)
	if name == "" {
		return model.DefaultCategory
	}

	if cat, ok := exact[name]; ok {
		return cat
	}

	for _, r := range rules {
		for _, kw := range r.contains {
			if strings.Contains(name, kw) {
				return r.category
			}
		}
	}

	return model.DefaultCategory
}

type rule struct {
	category string
	names    []string
	contains []string
}

// Rules are checked in order; put the more specific categories first so
// "frozen peas" lands in Frozen and "hand soap" in Personal Care.
var rules = []rule{
	{
		category: Frozen,
		names:    []string{"ice cream", "ice", "popsicles", "dumplings"},
		contains: []string{"frozen", "ice cream", "popsicle"},
	},
	{
		category: Medical,
		names:    []string{"aspirin", "ibuprofen", "paracetamol", "bandages", "plasters", "vitamins", "thermometer", "antiseptic"},
		contains: []string{"tablet", "capsule", "pill", "medicine", "syrup for", "bandage", "plaster", "vitamin", "ointment", "first aid"},
	},
	{
		category: PersonalCare,
		names:    []string{"shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant", "lotion", "sunscreen", "floss", "razors", "tissues"},
		contains: []string{"hand soap", "body wash", "shampoo", "toothpaste", "toothbrush", "razor", "tissue", "cotton pad"},
	},
	{
		category: Cleaning,
		names:    []string{"bleach", "sponges", "detergent", "dish soap", "trash bags", "paper towels", "toilet paper", "softener"},
		contains: []string{"detergent", "cleaner", "cleaning", "dish soap", "laundry", "sponge", "trash bag", "garbage bag", "paper towel", "toilet paper", "disinfect", "wipes"},
	},
	{
		category: Accessories,
		names:    []string{"batteries", "light bulbs", "candles", "foil", "cling film"},
		contains: []string{"battery", "light bulb", "charger", "cable", "foil", "zip bag", "ziplock"},
	},
	{
		category: Beverages,
		names:    []string{"water", "juice", "coffee", "tea", "soda", "beer", "wine", "cola"},
		contains: []string{"sparkling water", "juice", "coffee", "tea", "soda", "beer", "wine", "drink", "lemonade"},
	},
	{
		category: FreshFood,
		names:    []string{"milk", "eggs", "butter", "cheese", "yogurt", "bread", "chicken", "beef", "pork", "fish", "tofu", "apples", "bananas", "tomatoes", "lettuce", "onions"},
		contains: []string{"milk", "egg", "cheese", "yogurt", "cream", "bread", "chicken", "beef", "pork", "salmon", "shrimp", "fish", "meat", "fruit", "berr", "apple", "banana", "tomato", "potato", "onion", "carrot", "lettuce", "spinach", "vegetable"},
	},
	{
		category: Pantry,
		names:    []string{"rice", "pasta", "flour", "sugar", "salt", "oil", "vinegar", "honey", "cereal", "oats", "noodles", "beans", "lentils"},
		contains: []string{"rice", "pasta", "noodle", "flour", "sugar", "sauce", "oil", "canned", "cereal", "oat", "spice", "seasoning", "soup", "broth", "bean", "lentil", "snack", "chip", "cracker", "cookie"},
	},
}

var exact = func() map[string]string {
	m := make(map[string]string)
	for _, r := range rules {
		for _, n := range r.names {
			m[n] = r.category
		}
	}
	return m
}()
