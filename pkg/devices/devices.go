package devices

import "github.com/root4loot/goutils/sliceutil"

// Category groups devices by form factor.
type Category string

const (
	Phone   Category = "phone"
	Tablet  Category = "tablet"
	Desktop Category = "desktop"
)

// Categories lists every category in report order.
var Categories = []Category{Phone, Tablet, Desktop}

// DisplayName returns the heading used for the category in reports.
func (c Category) DisplayName() string {
	switch c {
	case Phone:
		return "Phones"
	case Tablet:
		return "Tablets"
	case Desktop:
		return "Desktop & Laptops"
	default:
		return string(c)
	}
}

// Device is a named viewport configuration. Name is unique within the catalog.
type Device struct {
	Name       string   `yaml:"name"`
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	PixelRatio float64  `yaml:"pixel_ratio"`
	Category   Category `yaml:"category"`
	UserAgent  string   `yaml:"user_agent,omitempty"`
}

const (
	iosUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	ipadUA    = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	androidUA = "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Mobile Safari/537.36"
	tabletUA  = "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
)

var catalog = []Device{
	// phones
	{Name: "iPhone SE", Width: 375, Height: 667, PixelRatio: 2, Category: Phone, UserAgent: iosUA},
	{Name: "iPhone 13 mini", Width: 375, Height: 812, PixelRatio: 3, Category: Phone, UserAgent: iosUA},
	{Name: "iPhone 14", Width: 390, Height: 844, PixelRatio: 3, Category: Phone, UserAgent: iosUA},
	{Name: "iPhone 15 Pro", Width: 393, Height: 852, PixelRatio: 3, Category: Phone, UserAgent: iosUA},
	{Name: "iPhone 15 Pro Max", Width: 430, Height: 932, PixelRatio: 3, Category: Phone, UserAgent: iosUA},
	{Name: "Pixel 7", Width: 412, Height: 915, PixelRatio: 2.625, Category: Phone, UserAgent: androidUA},
	{Name: "Pixel 8 Pro", Width: 412, Height: 915, PixelRatio: 3.5, Category: Phone, UserAgent: androidUA},
	{Name: "Samsung Galaxy S23", Width: 360, Height: 780, PixelRatio: 3, Category: Phone, UserAgent: androidUA},
	{Name: "Samsung Galaxy S24 Ultra", Width: 384, Height: 824, PixelRatio: 3.75, Category: Phone, UserAgent: androidUA},
	{Name: "Samsung Galaxy A54", Width: 412, Height: 915, PixelRatio: 2.625, Category: Phone, UserAgent: androidUA},
	{Name: "Galaxy Z Fold 5", Width: 344, Height: 882, PixelRatio: 2.625, Category: Phone, UserAgent: androidUA},
	{Name: "OnePlus 12", Width: 412, Height: 919, PixelRatio: 3.5, Category: Phone, UserAgent: androidUA},

	// tablets
	{Name: "iPad Mini", Width: 744, Height: 1133, PixelRatio: 2, Category: Tablet, UserAgent: ipadUA},
	{Name: "iPad Air", Width: 820, Height: 1180, PixelRatio: 2, Category: Tablet, UserAgent: ipadUA},
	{Name: "iPad Pro 11", Width: 834, Height: 1194, PixelRatio: 2, Category: Tablet, UserAgent: ipadUA},
	{Name: "iPad Pro 12.9", Width: 1024, Height: 1366, PixelRatio: 2, Category: Tablet, UserAgent: ipadUA},
	{Name: "Galaxy Tab S9", Width: 800, Height: 1280, PixelRatio: 2, Category: Tablet, UserAgent: tabletUA},
	{Name: "Surface Pro 9", Width: 912, Height: 1368, PixelRatio: 2, Category: Tablet},
	{Name: "Pixel Tablet", Width: 800, Height: 1280, PixelRatio: 2, Category: Tablet, UserAgent: tabletUA},

	// desktops and laptops
	{Name: "MacBook Air 13", Width: 1280, Height: 832, PixelRatio: 2, Category: Desktop},
	{Name: "MacBook Pro 14", Width: 1512, Height: 982, PixelRatio: 2, Category: Desktop},
	{Name: "MacBook Pro 16", Width: 1728, Height: 1117, PixelRatio: 2, Category: Desktop},
	{Name: "Laptop HD", Width: 1366, Height: 768, PixelRatio: 1, Category: Desktop},
	{Name: "Laptop HD+", Width: 1536, Height: 864, PixelRatio: 1.25, Category: Desktop},
	{Name: "Desktop 1080p", Width: 1920, Height: 1080, PixelRatio: 1, Category: Desktop},
	{Name: "Desktop 1440p", Width: 2560, Height: 1440, PixelRatio: 1, Category: Desktop},
	{Name: "iMac 24", Width: 2240, Height: 1260, PixelRatio: 2, Category: Desktop},
	{Name: "Desktop 4K", Width: 3840, Height: 2160, PixelRatio: 1, Category: Desktop},
}

// All returns a copy of the catalog.
func All() []Device {
	return append([]Device(nil), catalog...)
}

// ByCategory returns the catalog devices in category c.
func ByCategory(c Category) []Device {
	var out []Device
	for _, d := range catalog {
		if d.Category == c {
			out = append(out, d)
		}
	}
	return out
}

// Select returns the union of the requested categories in catalog order.
// With no category requested every device is returned.
func Select(phones, tablets, desktops bool) []Device {
	var wanted []string
	if phones {
		wanted = append(wanted, string(Phone))
	}
	if tablets {
		wanted = append(wanted, string(Tablet))
	}
	if desktops {
		wanted = append(wanted, string(Desktop))
	}

	if len(wanted) == 0 {
		return All()
	}

	var out []Device
	for _, d := range catalog {
		if sliceutil.Contains(wanted, string(d.Category)) {
			out = append(out, d)
		}
	}
	return out
}

// CategoryNames returns Categories as plain strings, as used in config files.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// Find returns the catalog device called name.
func Find(name string) (Device, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}
