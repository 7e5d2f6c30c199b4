package testutil

import (
	"github.com/openreceipts/shelfmatch/internal/model"
)

// GroceryCatalog returns a small, realistic grocery catalog covering the
// common fixture needs: branded and store-brand products, barcodes, and
// near-duplicate names that force ranking decisions.
func GroceryCatalog() []model.Product {
	return []model.Product{
		{Name: "Organic Fuji Apples", Brand: "Fresh Farms", Barcode: "012345678905", Category: "Produce"},
		{Name: "Organic Gala Apples", Brand: "Fresh Farms", Barcode: "012345678912", Category: "Produce"},
		{Name: "Organic Bananas", Brand: "Fresh Farms", Barcode: "012345678929", Category: "Produce"},
		{Name: "Whole Milk 1 Gallon", Brand: "Lucerne", Barcode: "021130070008", Category: "Dairy"},
		{Name: "2% Reduced Fat Milk", Brand: "Lucerne", Barcode: "021130070015", Category: "Dairy"},
		{Name: "Almond Butter 27oz", Brand: "Kirkland Signature", Barcode: "096619756803", Category: "Pantry"},
		{Name: "Sparkling Water 35ct", Brand: "Kirkland Signature", Barcode: "096619321550", Category: "Beverages"},
		{Name: "Creamy Peanut Butter", Brand: "Great Value", Barcode: "078742081830", Category: "Pantry"},
		{Name: "Boneless Skinless Chicken Breast", Brand: "", Barcode: "", Category: "Meat"},
		{Name: "Sharp Cheddar Cheese Block", Brand: "Tillamook", Barcode: "072830025003", Category: "Dairy"},
	}
}

// Item builds a matchable line item with sensible defaults.
func Item(id, name string) model.LineItem {
	return model.LineItem{
		ID:             id,
		RawText:        name,
		NormalizedName: name,
		Merchant:       "Test Market",
		Confidence:     0.9,
	}
}

// ItemWithBrand builds a matchable line item claiming a brand.
func ItemWithBrand(id, name, brand string) model.LineItem {
	item := Item(id, name)
	item.Brand = brand
	return item
}
