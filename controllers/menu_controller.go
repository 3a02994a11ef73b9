package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/delaight/waiter/retrieval"
)

// Dish documents returned by the menu endpoints.
type Dish struct {
	Dish        string `json:"dish"`
	Category    string `json:"category,omitempty"`
	Ingredients string `json:"ingredients,omitempty"`
}

// Dishes per kitchen query response.
type Dishes struct {
	Dishes []Dish `json:"dishes"`
}

// MenuController serves menu browsing straight from the dish index,
// bypassing the conversational flow.
type MenuController struct {
	Index retrieval.Index
	// TopK caps the dishes per query.
	TopK int
}

func NewMenuController(index retrieval.Index) *MenuController {
	return &MenuController{Index: index, TopK: 5}
}

// TopDishes handles GET /menu/top?kitchen=: the most relevant dishes for a
// kitchen or cuisine keyword.
func (ctrl *MenuController) TopDishes(c *gin.Context) {
	kitchen := c.Query("kitchen")
	if kitchen == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing kitchen parameter"})
		return
	}

	docs, err := ctrl.Index.Search(c.Request.Context(), kitchen, ctrl.TopK)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := Dishes{Dishes: make([]Dish, len(docs))}
	for i, doc := range docs {
		out.Dishes[i] = Dish{
			Dish:        doc.Name,
			Category:    doc.Metadata["Category"],
			Ingredients: doc.Metadata["Ingredients"],
		}
	}
	c.JSON(http.StatusOK, out)
}
