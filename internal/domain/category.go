package domain

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// CategoryAll is the pseudo category that matches every product.
const CategoryAll = "all"

var Categories = []Category{
	{ID: CategoryAll, Name: "Todos", Slug: CategoryAll, Description: "Todos los productos"},
	{ID: "hombre", Name: "Hombres", Slug: "hombre", Description: "Ropa y accesorios para hombres"},
	{ID: "mujer", Name: "Mujeres", Slug: "mujer", Description: "Ropa y accesorios para mujeres"},
	{ID: "niños", Name: "Niños", Slug: "niños", Description: "Ropa y accesorios para niños"},
	{ID: "hogar", Name: "Hogar", Slug: "hogar", Description: "Productos sostenibles para el hogar"},
	{ID: "accesorios", Name: "Accesorios", Slug: "accesorios", Description: "Accesorios de moda sostenible"},
}

func CategoryByID(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
