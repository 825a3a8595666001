package domain

// Categories is the closed set of storable recipe categories.
var Categories = []string{
	"Jul", "keto", "kött", "kyckling", "fisk", "färs",
	"dessert", "bröd", "vegetariskt", "godis", "övrigt",
}

// PseudoCategories are reserved view selectors. They never appear as a
// stored category on any recipe.
var PseudoCategories = []string{"Hem", "nytt", "favoriter", "sök"}

// ValidCategory reports whether c is a storable category.
func ValidCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}
