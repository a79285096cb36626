package catalog

import (
	"errors"
	"time"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrOrderNotFound   = errors.New("catalog: order not found")
)

// Category is a budget category key. The set is closed; see Categories.
type Category string

const (
	CategoryGarden         Category = "garden"
	CategoryBaskets        Category = "baskets"
	CategoryBuckets        Category = "buckets"
	CategorySmallBaskets   Category = "small_baskets"
	CategoryTulips         Category = "tulips"
	CategoryTulipWraps     Category = "tulip_wraps"
	CategoryRoses          Category = "roses"
	CategorySpringBouquets Category = "spring_bouquets"
)

// Categories lists every category in picker order.
var Categories = []Category{
	CategoryGarden,
	CategoryBaskets,
	CategoryBuckets,
	CategorySmallBaskets,
	CategoryTulips,
	CategoryTulipWraps,
	CategoryRoses,
	CategorySpringBouquets,
}

var categoryNames = map[Category]string{
	CategoryGarden:         "Весенний сад",
	CategoryBaskets:        "Корзины и Кашпо",
	CategoryBuckets:        "Ведра",
	CategorySmallBaskets:   "Ведерки и корзинки",
	CategoryTulips:         "Тюльпаны",
	CategoryTulipWraps:     "Свертки тюльпанов",
	CategoryRoses:          "Сибирские розы",
	CategorySpringBouquets: "Весенние букеты",
}

// Products in these categories differ by stem count, so the product name
// ("25 шт") is what the customer needs to see.
var showsProductName = map[Category]bool{
	CategoryTulipWraps: true,
	CategoryRoses:      true,
}

// ParseCategory reports whether key names a known category.
func ParseCategory(key string) (Category, bool) {
	c := Category(key)
	_, ok := categoryNames[c]
	return c, ok
}

// Name returns the canonical display name of the category.
func (c Category) Name() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// DisplayName resolves what a product is called in captions, summaries and
// operator notifications.
func DisplayName(c Category, productName string) string {
	if showsProductName[c] {
		return productName
	}
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return productName
}

type Product struct {
	ID          int64
	Name        string
	Category    Category
	Price       string
	Description string
	Photos      []string
}

// DisplayName applies the category override rule to the product.
func (p Product) DisplayName() string {
	return DisplayName(p.Category, p.Name)
}

type OrderStatus string

const (
	StatusNew       OrderStatus = "new"
	StatusCompleted OrderStatus = "completed"
)

type Order struct {
	ID           int64
	CustomerID   int64
	CustomerName string
	Phone        string
	Address      string
	DeliveryDate string
	ProductID    int64
	Status       OrderStatus
	CreatedAt    time.Time
	// CompletedAt is zero until the operator marks the order completed.
	CompletedAt time.Time
}

// NewOrder is what the dialogue hands to the store on confirmation.
type NewOrder struct {
	CustomerID   int64
	CustomerName string
	Phone        string
	Address      string
	DeliveryDate string
	ProductID    int64
}
