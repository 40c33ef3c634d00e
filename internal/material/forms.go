package material

import "strings"

// StockForm describes a base form of rolled stock and the spellings under
// which designers enter it.
type StockForm struct {
	Name        string   // Canonical spelling used in normalized descriptors
	Aliases     []string // Alternative spellings, compared case-insensitively
	Description string
}

// KnownForms is the built-in stock form table.
var KnownForms = []StockForm{
	{
		Name:        "Лист",
		Aliases:     []string{"Лист.", "Листовой"},
		Description: "Sheet and plate",
	},
	{
		Name:        "Труба",
		Aliases:     []string{"Труба.", "Тр."},
		Description: "Round and profile tube",
	},
	{
		Name:        "Круг",
		Aliases:     []string{"Круг.", "Пруток"},
		Description: "Round bar",
	},
	{
		Name:        "Полоса",
		Aliases:     []string{"Полоса.", "Шина"},
		Description: "Flat bar",
	},
	{
		Name:        "Уголок",
		Aliases:     []string{"Уголок.", "Угол"},
		Description: "Angle",
	},
	{
		Name:        "Швеллер",
		Aliases:     []string{"Швеллер."},
		Description: "Channel",
	},
	{
		Name:        "Двутавр",
		Aliases:     []string{"Двутавр.", "Балка"},
		Description: "I-beam",
	},
	{
		Name:        "Квадрат",
		Aliases:     []string{"Квадрат."},
		Description: "Square bar",
	},
	{
		Name:        "Шестигранник",
		Aliases:     []string{"Шестигр."},
		Description: "Hexagon bar",
	},
	{
		Name:        "Проволока",
		Aliases:     []string{"Проволока."},
		Description: "Wire",
	},
}

// MatchForm returns the stock form whose name or alias equals word
// (case-insensitively), or nil.
func MatchForm(word string) *StockForm {
	for i := range KnownForms {
		f := &KnownForms[i]
		if strings.EqualFold(f.Name, word) {
			return f
		}
		for _, a := range f.Aliases {
			if strings.EqualFold(a, word) {
				return f
			}
		}
	}
	return nil
}
