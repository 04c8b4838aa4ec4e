package types

import "time"

// Field names of the fixed output schema, in column order.
const (
	FieldPriceDatetime  = "price_datetime"
	FieldPrice          = "price"
	FieldPricePromo     = "price_promo"
	FieldStatus         = "sku_status"
	FieldBarcode        = "sku_barcode"
	FieldArticle        = "sku_article"
	FieldName           = "sku_name"
	FieldCategory       = "sku_category"
	FieldCountry        = "sku_country"
	FieldWeightMin      = "sku_weight_min"
	FieldVolumeMin      = "sku_volume_min"
	FieldQuantityMin    = "sku_quantity_min"
	FieldLink           = "sku_link"
	FieldImages         = "sku_images"
	priceDatetimeLayout = "2006-01-02 15:04:05"
)

// RecordSchema is the header every sink writes.
var RecordSchema = []string{
	FieldPriceDatetime,
	FieldPrice,
	FieldPricePromo,
	FieldStatus,
	FieldBarcode,
	FieldArticle,
	FieldName,
	FieldCategory,
	FieldCountry,
	FieldWeightMin,
	FieldVolumeMin,
	FieldQuantityMin,
	FieldLink,
	FieldImages,
}

// Record is one extracted item variant. Empty strings mean the value was absent.
type Record struct {
	PriceDatetime time.Time `json:"price_datetime"`
	Price         string    `json:"price"`
	PricePromo    string    `json:"price_promo"`
	Status        string    `json:"sku_status"`
	Barcode       string    `json:"sku_barcode"`
	Article       string    `json:"sku_article"`
	Name          string    `json:"sku_name"`
	Category      string    `json:"sku_category"`
	Country       string    `json:"sku_country"`
	WeightMin     string    `json:"sku_weight_min"`
	VolumeMin     string    `json:"sku_volume_min"`
	QuantityMin   string    `json:"sku_quantity_min"`
	Link          string    `json:"sku_link"`
	Images        string    `json:"sku_images"`
}

// IdentityKey returns the composite article/barcode key. ok is false when
// either part is empty, in which case the record has no identity.
func (r Record) IdentityKey() (key string, ok bool) {
	if r.Article == "" || r.Barcode == "" {
		return "", false
	}
	return r.Article + "\x00" + r.Barcode, true
}

// SameItem reports whether r and other are the same logical item.
func (r Record) SameItem(other Record) bool {
	a, ok := r.IdentityKey()
	if !ok {
		return false
	}
	b, ok := other.IdentityKey()
	return ok && a == b
}

// Field returns the string value of the named schema field.
func (r Record) Field(name string) string {
	switch name {
	case FieldPriceDatetime:
		if r.PriceDatetime.IsZero() {
			return ""
		}
		return r.PriceDatetime.Format(priceDatetimeLayout)
	case FieldPrice:
		return r.Price
	case FieldPricePromo:
		return r.PricePromo
	case FieldStatus:
		return r.Status
	case FieldBarcode:
		return r.Barcode
	case FieldArticle:
		return r.Article
	case FieldName:
		return r.Name
	case FieldCategory:
		return r.Category
	case FieldCountry:
		return r.Country
	case FieldWeightMin:
		return r.WeightMin
	case FieldVolumeMin:
		return r.VolumeMin
	case FieldQuantityMin:
		return r.QuantityMin
	case FieldLink:
		return r.Link
	case FieldImages:
		return r.Images
	}
	return ""
}

// Values projects the record onto schema.
func (r Record) Values(schema []string) []string {
	out := make([]string, len(schema))
	for i, name := range schema {
		out[i] = r.Field(name)
	}
	return out
}
