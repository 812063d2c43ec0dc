package domain

// Settings holds the user-level preferences shown on the settings page.
type Settings struct {
	Name                 string `json:"name,omitempty"`
	DefaultCurrency      string `json:"defaultCurrency,omitempty"`
	Timezone             string `json:"timezone,omitempty"`
	DateFormat           string `json:"dateFormat,omitempty"`
	Bio                  string `json:"bio,omitempty"`
	Location             string `json:"location,omitempty"`
	Website              string `json:"website,omitempty"`
	Avatar               string `json:"avatar,omitempty"`
	EmailNotifications   bool   `json:"emailNotifications"`
	BrowserNotifications bool   `json:"browserNotifications"`
	RenewalReminders     bool   `json:"renewalReminders"`
	WeeklySummary        bool   `json:"weeklySummary"`
}

// Category is a user-defined grouping for subscriptions.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Currency is an entry in the currency picker.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// DefaultCategories are offered in the subscription form before the user defines any.
var DefaultCategories = []string{
	"Streaming",
	"Software",
	"Cloud Services",
	"Gym/Fitness",
	"News/Magazines",
	"Gaming",
	"Music",
	"Productivity",
	"Security",
	"Other",
}

// SupportedCurrencies mirrors the backend's currency list.
var SupportedCurrencies = []Currency{
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
	{Code: "GBP", Name: "British Pound", Symbol: "£"},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$"},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
}

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle flips between light and dark.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Preferences is the local-storage analog persisted per user.
type Preferences struct {
	UserID   string `json:"userId"`
	Theme    Theme  `json:"theme"`
	DemoMode bool   `json:"demoMode"`
}
