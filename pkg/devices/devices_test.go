package devices

import "testing"

func TestCatalogNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range All() {
		if seen[d.Name] {
			t.Errorf("duplicate device name %q", d.Name)
		}
		seen[d.Name] = true

		if d.Width <= 0 || d.Height <= 0 || d.PixelRatio <= 0 {
			t.Errorf("device %q has invalid dimensions %dx%d@%v", d.Name, d.Width, d.Height, d.PixelRatio)
		}
	}
}

func TestSelect(t *testing.T) {
	phones := ByCategory(Phone)
	tablets := ByCategory(Tablet)
	desktops := ByCategory(Desktop)

	tests := []struct {
		name                      string
		phones, tablets, desktops bool
		want                      int
	}{
		{"no filters", false, false, false, len(All())},
		{"phones only", true, false, false, len(phones)},
		{"tablets only", false, true, false, len(tablets)},
		{"desktops only", false, false, true, len(desktops)},
		{"phones and tablets", true, true, false, len(phones) + len(tablets)},
		{"all filters", true, true, true, len(All())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.phones, tt.tablets, tt.desktops)
			if len(got) != tt.want {
				t.Errorf("Select() returned %d devices, want %d", len(got), tt.want)
			}
		})
	}

	for _, d := range Select(true, false, false) {
		if d.Category != Phone {
			t.Errorf("phones-only selection contains %s (%s)", d.Name, d.Category)
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"

	if All()[0].Name == "changed" {
		t.Fatal("All() exposed the catalog slice")
	}
}

func TestDisplayName(t *testing.T) {
	if got := Desktop.DisplayName(); got != "Desktop & Laptops" {
		t.Errorf("Desktop.DisplayName() = %q", got)
	}
	if got := Phone.DisplayName(); got != "Phones" {
		t.Errorf("Phone.DisplayName() = %q", got)
	}
}

func TestFind(t *testing.T) {
	d, ok := Find("iPhone 15 Pro")
	if !ok {
		t.Fatalf("Expected iPhone 15 Pro in the catalog")
	}
	if d.Width != 393 || d.Height != 852 || d.Category != Phone {
		t.Errorf("Expected 393x852 phone, got %dx%d %s", d.Width, d.Height, d.Category)
	}

	if _, ok := Find("Nokia 3310"); ok {
		t.Errorf("Expected unknown device to be missing")
	}
}

func TestCategoryNames(t *testing.T) {
	names := CategoryNames()
	if len(names) != 3 || names[0] != "phone" || names[1] != "tablet" || names[2] != "desktop" {
		t.Errorf("Expected [phone tablet desktop], got %v", names)
	}
}
