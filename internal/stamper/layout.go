package stamper

import "fmt"

// SignatureLocation places one stamp on one page. Coordinates are PDF points
// with the origin at the bottom-left corner of the page.
type SignatureLocation struct {
	Page  int     `mapstructure:"page" json:"page"`
	SigX  float64 `mapstructure:"sig_x" json:"sigX"`
	SigY  float64 `mapstructure:"sig_y" json:"sigY"`
	TextX float64 `mapstructure:"text_x" json:"textX"`
	TextY float64 `mapstructure:"text_y" json:"textY"`
}

// StampSpec is the box every placement of a stamp kind is drawn into.
type StampSpec struct {
	Width  float64 `mapstructure:"width" json:"width"`
	Height float64 `mapstructure:"height" json:"height"`
}

// StampKind groups the size of a stamp with its ordered page table.
type StampKind struct {
	Spec      StampSpec           `mapstructure:"spec"`
	Locations []SignatureLocation `mapstructure:"locations"`
}

// Layout is everything the stamper draws, loaded once at startup.
type Layout struct {
	User       StampKind `mapstructure:"user"`
	Auto       StampKind `mapstructure:"auto"`
	Font       string    `mapstructure:"font"`
	FontSize   int       `mapstructure:"font_size"`
	TextColor  string    `mapstructure:"text_color"`
	DatePrefix string    `mapstructure:"date_prefix"`
	Legend     string    `mapstructure:"legend"`
}

// DefaultLayout returns the hand-tuned tables for the enrollment contract template.
func DefaultLayout() Layout {
	return Layout{
		User: StampKind{
			Spec: StampSpec{Width: 203, Height: 60},
			Locations: []SignatureLocation{
				{Page: 0, SigX: 110, SigY: 80, TextX: 110, TextY: 60},
				{Page: 1, SigX: 110, SigY: 70, TextX: 110, TextY: 50},
				{Page: 2, SigX: 110, SigY: 100, TextX: 110, TextY: 80},
				{Page: 3, SigX: 110, SigY: 90, TextX: 110, TextY: 80},
				{Page: 4, SigX: 110, SigY: 165, TextX: 110, TextY: 130},
				{Page: 5, SigX: 130, SigY: 110, TextX: 130, TextY: 90},
				{Page: 6, SigX: 110, SigY: 140, TextX: 110, TextY: 90},
				{Page: 7, SigX: 120, SigY: 115, TextX: 110, TextY: 90},
			},
		},
		Auto: StampKind{
			Spec: StampSpec{Width: 203, Height: 60},
			Locations: []SignatureLocation{
				{Page: 0, SigX: 340, SigY: 80, TextX: 340, TextY: 60},
				{Page: 1, SigX: 340, SigY: 70, TextX: 340, TextY: 50},
				{Page: 2, SigX: 340, SigY: 100, TextX: 340, TextY: 80},
				{Page: 3, SigX: 340, SigY: 90, TextX: 340, TextY: 80},
				{Page: 4, SigX: 340, SigY: 165, TextX: 340, TextY: 130},
				{Page: 5, SigX: 360, SigY: 110, TextX: 360, TextY: 90},
				{Page: 6, SigX: 340, SigY: 140, TextX: 340, TextY: 90},
				{Page: 7, SigX: 350, SigY: 115, TextX: 340, TextY: 90},
			},
		},
		Font:       "Helvetica",
		FontSize:   8,
		TextColor:  "#1A1A1A",
		DatePrefix: "Firmado el: ",
		Legend:     "Inscripción Automática en Plataforma",
	}
}

// Validate reports the first structural problem in the layout.
func (l Layout) Validate() error {
	kinds := []struct {
		name string
		kind StampKind
	}{{"user", l.User}, {"auto", l.Auto}}
	for _, k := range kinds {
		name, kind := k.name, k.kind
		if kind.Spec.Width <= 0 || kind.Spec.Height <= 0 {
			return fmt.Errorf("%s stamp: width and height must be positive", name)
		}
		for i, loc := range kind.Locations {
			if loc.Page < 0 {
				return fmt.Errorf("%s stamp: location %d has negative page index %d", name, i, loc.Page)
			}
		}
	}
	if l.Font == "" {
		return fmt.Errorf("font must be set")
	}
	if l.FontSize <= 0 {
		return fmt.Errorf("font size must be positive")
	}
	return nil
}
