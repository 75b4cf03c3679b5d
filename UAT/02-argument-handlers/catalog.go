package catalog

// Catalog prices products.
type Catalog struct {
	Price func(sku string, quantity int) int
}

// Total sums the price of every line in order.
func Total(catalog *Catalog, order map[string]int) int {
	total := 0
	for sku, quantity := range order {
		total += catalog.Price(sku, quantity)
	}

	return total
}
