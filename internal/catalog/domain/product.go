package domain

// Product categories
const (
	CategoryAll         = "all"
	CategorySmartphones = "smartphones"
	CategoryTablets     = "tablets"
	CategoryAccessories = "accesorios"
)

// Stock levels
const (
	StockIn  = "in-stock"
	StockLow = "low-stock"
	StockOut = "out-of-stock"
)

// Category pairs a filter value with its display label
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Categories is the closed set of category filters
var Categories = []Category{
	{Value: CategoryAll, Label: "Todos"},
	{Value: CategorySmartphones, Label: "Smartphones"},
	{Value: CategoryTablets, Label: "Tablets"},
	{Value: CategoryAccessories, Label: "Accesorios"},
}

// ValidCategory reports whether value belongs to the closed category set
func ValidCategory(value string) bool {
	for _, c := range Categories {
		if c.Value == value {
			return true
		}
	}
	return false
}

// Specs holds the technical sheet of a device
type Specs struct {
	Screen    string `json:"screen,omitempty"`
	Processor string `json:"processor,omitempty"`
	RAM       string `json:"ram,omitempty"`
	Storage   string `json:"storage,omitempty"`
	Battery   string `json:"battery,omitempty"`
	Camera    string `json:"camera,omitempty"`
}

// Option is a selectable product variant (color or storage)
type Option struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Options groups the selectable variants of a product
type Options struct {
	Colors   []Option `json:"colors"`
	Storages []Option `json:"storages"`
}

// Product represents a catalog entry
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"original_price,omitempty"`
	Image         string   `json:"image"`
	Images        []string `json:"images"`
	Category      string   `json:"category"`
	Stock         string   `json:"stock"`
	IsNew         bool     `json:"is_new,omitempty"`
	IsFeatured    bool     `json:"is_featured,omitempty"`
	Specs         Specs    `json:"specs"`
	Description   string   `json:"description"`
	Options       *Options `json:"options,omitempty"`
}

// ColorName resolves a selected color code to its display name.
// Products without options resolve every code to "".
func (p *Product) ColorName(code int) string {
	if p.Options == nil {
		return ""
	}
	return optionName(p.Options.Colors, code)
}

// StorageName resolves a selected storage code to its display name.
func (p *Product) StorageName(code int) string {
	if p.Options == nil {
		return ""
	}
	return optionName(p.Options.Storages, code)
}

func optionName(options []Option, code int) string {
	for _, o := range options {
		if o.Code == code {
			return o.Name
		}
	}
	return ""
}
