package models

type House struct {
	ID             int64  `db:"id" json:"id"`
	Slug           string `db:"slug" json:"slug" validate:"required,max=50"`
	Name           string `db:"name" json:"name" validate:"required,max=120"`
	Motto          string `db:"motto" json:"motto"`
	CrestURL       string `db:"crest_url" json:"crest_url"`
	ColorPrimary   string `db:"color_primary" json:"color_primary" validate:"omitempty,hexcolor"`
	ColorSecondary string `db:"color_secondary" json:"color_secondary" validate:"omitempty,hexcolor"`
	WhatsAppLink   string `db:"whatsapp_link" json:"whatsapp_link" validate:"omitempty,url"`
}

// HouseCount is the number of students currently assigned to a house.
type HouseCount struct {
	HouseID int64 `db:"house_id"`
	Members int   `db:"members"`
}

func (h *House) Validate() error {
	return check(h)
}

// DefaultHouses is the fixed set seeded into an empty database, in registration order.
func DefaultHouses() []House {
	return []House{
		{
			Slug:           "lannister",
			Name:           "House Lannister of Casterly Rock",
			Motto:          "Hear Me Roar!",
			CrestURL:       "/media/house_crests/lannister.jpg",
			ColorPrimary:   "#FF0000",
			ColorSecondary: "#FFD700",
		},
		{
			Slug:           "stark",
			Name:           "House Stark of Winterfell",
			Motto:          "Winter Is Coming",
			CrestURL:       "/media/house_crests/stark.jpg",
			ColorPrimary:   "#A9A9A9",
			ColorSecondary: "#000000",
		},
		{
			Slug:           "targaryen",
			Name:           "House Targaryen of Dragonstone",
			Motto:          "Fire and Blood",
			CrestURL:       "/media/house_crests/targaryen.jpg",
			ColorPrimary:   "#000000",
			ColorSecondary: "#FF0000",
		},
		{
			Slug:           "baratheon",
			Name:           "House Baratheon of Storm's End",
			Motto:          "Ours is the Fury",
			CrestURL:       "/media/house_crests/baratheon.jpg",
			ColorPrimary:   "#FFD700",
			ColorSecondary: "#000000",
		},
		{
			Slug:           "greyjoy",
			Name:           "House Greyjoy of Pyke",
			Motto:          "We Do Not Sow",
			CrestURL:       "/media/house_crests/greyjoy.jpg",
			ColorPrimary:   "#2F4F4F",
			ColorSecondary: "#DAA520",
		},
	}
}
